package casestudies

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	imagePath = regexp.MustCompile(`(?i)^/.+\.(jpg|jpeg|png|webp)$`)
	videoPath = regexp.MustCompile(`(?i)^/.+\.(mp4|webm)$`)
)

// ValidationError carries every failed check of a record.
type ValidationError struct {
	Slug    string
	Reasons []string
}

func (e *ValidationError) Error() string {
	if len(e.Reasons) == 0 {
		return "validation error"
	}
	if e.Slug != "" {
		return fmt.Sprintf("%s: %s", e.Slug, strings.Join(e.Reasons, "; "))
	}
	return strings.Join(e.Reasons, "; ")
}

// Validate returns the reasons rec cannot be saved. All checks run; an empty
// result means the record is valid.
func Validate(rec CaseRecord) []string {
	var errs []string
	if strings.TrimSpace(rec.Slug) == "" {
		errs = append(errs, "slug is required")
	}
	if strings.TrimSpace(rec.TitleDe) == "" && strings.TrimSpace(rec.TitleEn) == "" {
		errs = append(errs, "title (de or en) is required")
	}
	if rec.Category != "" && !slices.Contains(Categories, rec.Category) {
		errs = append(errs, fmt.Sprintf("category %q is not one of %s", rec.Category, strings.Join(Categories, ", ")))
	}
	if rec.Industry != "" && !slices.Contains(Industries, rec.Industry) {
		errs = append(errs, fmt.Sprintf("industry %q is not one of %s", rec.Industry, strings.Join(Industries, ", ")))
	}
	if rec.HeroImage != "" && !imagePath.MatchString(rec.HeroImage) {
		errs = append(errs, "heroImage must be an absolute path ending in jpg, jpeg, png or webp")
	}
	if rec.HeroMedia != "" && !videoPath.MatchString(rec.HeroMedia) {
		errs = append(errs, "heroMedia must be an absolute path ending in mp4 or webm")
	}
	if rec.HeroPoster != "" && !imagePath.MatchString(rec.HeroPoster) {
		errs = append(errs, "heroPoster must be an absolute path ending in jpg, jpeg, png or webp")
	}
	if rec.Quote != nil && strings.TrimSpace(rec.Quote.TextDe) == "" && strings.TrimSpace(rec.Quote.TextEn) == "" {
		errs = append(errs, "quote needs text in at least one language")
	}
	return errs
}

// Check wraps Validate into an error.
func Check(rec CaseRecord) error {
	if reasons := Validate(rec); len(reasons) > 0 {
		return &ValidationError{Slug: rec.Slug, Reasons: reasons}
	}
	return nil
}

// IsImagePath and IsVideoPath expose the asset rules to the upload endpoint.
func IsImagePath(p string) bool { return imagePath.MatchString(p) }

func IsVideoPath(p string) bool { return videoPath.MatchString(p) }
