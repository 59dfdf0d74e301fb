// Package content serves the static site copy loaded from content.json and
// team.json. The repository is built once at start and read-only after.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	LangDE = "de"
	LangEN = "en"

	TeamSection = "team"
)

var ErrSectionNotFound = errors.New("content section not found")

// TeamMember is one entry of team.json. Localised fields fall back to German.
type TeamMember struct {
	Name   string `json:"name"`
	RoleDe string `json:"roleDe,omitempty"`
	RoleEn string `json:"roleEn,omitempty"`
	BioDe  string `json:"bioDe,omitempty"`
	BioEn  string `json:"bioEn,omitempty"`
	Image  string `json:"image,omitempty"`
	Email  string `json:"email,omitempty"`
}

type LocalizedMember struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Bio   string `json:"bio,omitempty"`
	Image string `json:"image,omitempty"`
	Email string `json:"email,omitempty"`
}

func (m TeamMember) Localize(lang string) LocalizedMember {
	out := LocalizedMember{Name: m.Name, Role: m.RoleDe, Bio: m.BioDe, Image: m.Image, Email: m.Email}
	if lang == LangEN {
		out.Role = pick(m.RoleEn, m.RoleDe)
		out.Bio = pick(m.BioEn, m.BioDe)
	}
	return out
}

// Repository maps section -> language -> raw JSON copy.
type Repository struct {
	sections map[string]map[string]json.RawMessage
	team     []TeamMember
}

func New(sections map[string]map[string]json.RawMessage, team []TeamMember) *Repository {
	if sections == nil {
		sections = map[string]map[string]json.RawMessage{}
	}
	return &Repository{sections: sections, team: team}
}

// Load reads content.json and, when present, team.json from dir.
func Load(dir string) (*Repository, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "content.json"))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	var sections map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &sections); err != nil {
		return nil, fmt.Errorf("decode content.json: %w", err)
	}

	var team []TeamMember
	raw, err = os.ReadFile(filepath.Join(dir, "team.json"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read team: %w", err)
	default:
		if err := json.Unmarshal(raw, &team); err != nil {
			return nil, fmt.Errorf("decode team.json: %w", err)
		}
	}
	return New(sections, team), nil
}

// GetContent returns the section in lang, falling back to German when the
// section has no copy in that language.
func (r *Repository) GetContent(section, lang string) (json.RawMessage, error) {
	section = strings.TrimSpace(section)
	if section == TeamSection && r.team != nil {
		out := make([]LocalizedMember, 0, len(r.team))
		for _, m := range r.team {
			out = append(out, m.Localize(lang))
		}
		return json.Marshal(out)
	}

	langs, ok := r.sections[section]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, section)
	}
	if body, ok := langs[lang]; ok {
		return body, nil
	}
	if body, ok := langs[LangDE]; ok {
		return body, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrSectionNotFound, section, lang)
}

// Sections lists the available section names, sorted.
func (r *Repository) Sections() []string {
	out := make([]string, 0, len(r.sections)+1)
	for name := range r.sections {
		out = append(out, name)
	}
	if r.team != nil {
		if _, ok := r.sections[TeamSection]; !ok {
			out = append(out, TeamSection)
		}
	}
	sort.Strings(out)
	return out
}

func pick(primary, fallback string) string {
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}
