// Package editor implements the CMS editing surface: an in-memory case
// collection per admin session, wired to the workflow guard and the undo
// history.
package editor

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/utils"
	"casehub-backend/internal/workflow"
)

var (
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrInvalidBulkEdit      = errors.New("invalid bulk edit")
)

// Collection is the ordered list of cases being edited. It is not safe for
// concurrent use; Session serialises access.
type Collection struct {
	items []casestudies.CaseRecord
}

func NewCollection(items []casestudies.CaseRecord) *Collection {
	return &Collection{items: casestudies.CloneAll(items)}
}

func (c *Collection) Items() []casestudies.CaseRecord {
	return casestudies.CloneAll(c.items)
}

func (c *Collection) Len() int {
	return len(c.items)
}

func (c *Collection) Get(slug string) (casestudies.CaseRecord, error) {
	i := c.index(slug)
	if i < 0 {
		return casestudies.CaseRecord{}, casestudies.ErrNotFound
	}
	return c.items[i].Clone(), nil
}

// Create adds a new case. A blank slug is derived from the English, then the
// German title. New cases always start as drafts.
func (c *Collection) Create(rec casestudies.CaseRecord) (casestudies.CaseRecord, error) {
	rec = normalize(rec)
	rec.Slug = utils.Slugify(firstNonEmpty(rec.Slug, rec.TitleEn, rec.TitleDe))
	rec.Status = workflow.StatusDraft
	rec.PublishedAt = nil

	if err := casestudies.Check(rec); err != nil {
		return casestudies.CaseRecord{}, err
	}
	if c.index(rec.Slug) >= 0 {
		return casestudies.CaseRecord{}, fmt.Errorf("%w: %s", casestudies.ErrSlugExists, rec.Slug)
	}
	c.items = append(c.items, rec.Clone())
	return rec, nil
}

// Update replaces the editable fields of the case at slug. Status and
// publishedAt belong to the workflow and are kept.
func (c *Collection) Update(slug string, rec casestudies.CaseRecord) (casestudies.CaseRecord, error) {
	i := c.index(slug)
	if i < 0 {
		return casestudies.CaseRecord{}, casestudies.ErrNotFound
	}
	rec = normalize(rec)
	if rec.Slug != "" {
		rec.Slug = utils.Slugify(rec.Slug)
	}
	rec.Status = c.items[i].Status
	rec.PublishedAt = c.items[i].Clone().PublishedAt

	if err := casestudies.Check(rec); err != nil {
		return casestudies.CaseRecord{}, err
	}
	if rec.Slug != slug && c.index(rec.Slug) >= 0 {
		return casestudies.CaseRecord{}, fmt.Errorf("%w: %s", casestudies.ErrSlugExists, rec.Slug)
	}
	c.items[i] = rec.Clone()
	return rec, nil
}

func (c *Collection) Delete(slug string) error {
	i := c.index(slug)
	if i < 0 {
		return casestudies.ErrNotFound
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

// BulkDelete removes every listed case and returns how many were found.
func (c *Collection) BulkDelete(slugs []string) int {
	drop := toSet(slugs)
	before := len(c.items)
	c.items = slices.DeleteFunc(c.items, func(rec casestudies.CaseRecord) bool {
		_, ok := drop[rec.Slug]
		return ok
	})
	return before - len(c.items)
}

// BulkEdit sets shared fields on the listed cases. Either every touched
// record stays valid and all are changed, or nothing is.
type BulkEdit struct {
	Category *string  `json:"category,omitempty"`
	Industry *string  `json:"industry,omitempty"`
	Owner    *string  `json:"owner,omitempty"`
	AddTech  []string `json:"addTech,omitempty"`
}

func (c *Collection) BulkEdit(slugs []string, edit BulkEdit) (int, error) {
	if edit.Category == nil && edit.Industry == nil && edit.Owner == nil && len(edit.AddTech) == 0 {
		return 0, fmt.Errorf("%w: nothing to change", ErrInvalidBulkEdit)
	}
	targets := toSet(slugs)
	next := casestudies.CloneAll(c.items)
	changed := 0
	for i := range next {
		if _, ok := targets[next[i].Slug]; !ok {
			continue
		}
		if edit.Category != nil {
			next[i].Category = strings.TrimSpace(*edit.Category)
		}
		if edit.Industry != nil {
			next[i].Industry = strings.TrimSpace(*edit.Industry)
		}
		if edit.Owner != nil {
			next[i].Owner = strings.TrimSpace(*edit.Owner)
		}
		next[i].Tech = addTags(next[i].Tech, edit.AddTech)
		if err := casestudies.Check(next[i]); err != nil {
			return 0, err
		}
		changed++
	}
	if changed == 0 {
		return 0, casestudies.ErrNotFound
	}
	c.items = next
	return changed, nil
}

// Transition applies a workflow action to one case.
func (c *Collection) Transition(slug string, role workflow.Role, action workflow.Action, now time.Time) (casestudies.CaseRecord, error) {
	i := c.index(slug)
	if i < 0 {
		return casestudies.CaseRecord{}, casestudies.ErrNotFound
	}
	rec := c.items[i].Clone()
	if err := rec.Apply(role, action, now); err != nil {
		return casestudies.CaseRecord{}, err
	}
	c.items[i] = rec
	return rec.Clone(), nil
}

type BulkTransitionResult struct {
	Applied []string          `json:"applied"`
	Skipped map[string]string `json:"skipped,omitempty"`
}

// BulkTransition applies action to every listed case that is in the right
// state. A role that may not perform the action changes nothing.
func (c *Collection) BulkTransition(slugs []string, role workflow.Role, action workflow.Action, now time.Time) (BulkTransitionResult, error) {
	if !workflow.CanPerform(role, action) {
		return BulkTransitionResult{}, fmt.Errorf("%w: %s may not %s", workflow.ErrPermissionDenied, role, action)
	}
	result := BulkTransitionResult{Applied: []string{}, Skipped: map[string]string{}}
	for _, slug := range slugs {
		i := c.index(slug)
		if i < 0 {
			result.Skipped[slug] = "not found"
			continue
		}
		if err := c.items[i].Apply(role, action, now); err != nil {
			result.Skipped[slug] = err.Error()
			continue
		}
		result.Applied = append(result.Applied, slug)
	}
	return result, nil
}

type Query struct {
	Status   workflow.Status
	Category string
	Industry string
	Search   string
	SortBy   string
	Desc     bool
}

var sortFields = map[string]func(a, b casestudies.CaseRecord) int{
	"slug":  func(a, b casestudies.CaseRecord) int { return strings.Compare(a.Slug, b.Slug) },
	"title": func(a, b casestudies.CaseRecord) int { return strings.Compare(strings.ToLower(a.Title("de")), strings.ToLower(b.Title("de"))) },
	"status": func(a, b casestudies.CaseRecord) int {
		return strings.Compare(string(a.Status), string(b.Status))
	},
	"publishedAt": func(a, b casestudies.CaseRecord) int {
		switch {
		case a.PublishedAt == nil && b.PublishedAt == nil:
			return 0
		case a.PublishedAt == nil:
			return -1
		case b.PublishedAt == nil:
			return 1
		}
		return a.PublishedAt.Compare(*b.PublishedAt)
	},
}

func IsSortField(name string) bool {
	_, ok := sortFields[name]
	return name == "" || ok
}

// List filters and sorts a copy of the collection. Without SortBy the
// insertion order is kept.
func (c *Collection) List(q Query) []casestudies.CaseRecord {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]casestudies.CaseRecord, 0, len(c.items))
	for _, rec := range c.items {
		if q.Status != "" && workflow.Normalize(rec.Status) != q.Status {
			continue
		}
		if q.Category != "" && rec.Category != q.Category {
			continue
		}
		if q.Industry != "" && rec.Industry != q.Industry {
			continue
		}
		if search != "" && !matches(rec, search) {
			continue
		}
		out = append(out, rec.Clone())
	}

	if cmp, ok := sortFields[q.SortBy]; ok {
		sort.SliceStable(out, func(i, j int) bool {
			if q.Desc {
				return cmp(out[j], out[i]) < 0
			}
			return cmp(out[i], out[j]) < 0
		})
	}
	return out
}

// Replace swaps the whole collection, e.g. after an import or undo.
func (c *Collection) Replace(items []casestudies.CaseRecord) {
	c.items = casestudies.CloneAll(items)
}

func (c *Collection) Export() ([]byte, error) {
	return casestudies.EncodeCollection(c.items)
}

// ParseImport decodes a cases.json payload. Every record needs its own slug;
// the other fields may still be incomplete drafts.
func ParseImport(data []byte) ([]casestudies.CaseRecord, error) {
	items, err := casestudies.DecodeCollection(data)
	if err != nil {
		return nil, err
	}
	if err := casestudies.CheckSlugs(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Collection) index(slug string) int {
	return slices.IndexFunc(c.items, func(rec casestudies.CaseRecord) bool {
		return rec.Slug == slug
	})
}

func normalize(rec casestudies.CaseRecord) casestudies.CaseRecord {
	rec.Slug = strings.TrimSpace(rec.Slug)
	rec.TitleDe = strings.TrimSpace(rec.TitleDe)
	rec.TitleEn = strings.TrimSpace(rec.TitleEn)
	rec.SubtitleDe = strings.TrimSpace(rec.SubtitleDe)
	rec.SubtitleEn = strings.TrimSpace(rec.SubtitleEn)
	rec.Category = strings.TrimSpace(rec.Category)
	rec.Industry = strings.TrimSpace(rec.Industry)
	rec.HeroImage = strings.TrimSpace(rec.HeroImage)
	rec.HeroMedia = strings.TrimSpace(rec.HeroMedia)
	rec.HeroPoster = strings.TrimSpace(rec.HeroPoster)
	rec.Owner = strings.TrimSpace(rec.Owner)
	rec.Tech = addTags(nil, rec.Tech)
	return rec
}

func matches(rec casestudies.CaseRecord, needle string) bool {
	fields := []string{rec.Slug, rec.TitleDe, rec.TitleEn, rec.SubtitleDe, rec.SubtitleEn, rec.Owner}
	fields = append(fields, rec.Tech...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// addTags appends tags not already present, ignoring case and blanks.
func addTags(existing, tags []string) []string {
	out := slices.Clone(existing)
	seen := make(map[string]struct{}, len(out)+len(tags))
	for _, t := range out {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
