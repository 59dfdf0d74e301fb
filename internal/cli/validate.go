package cli

import (
	"errors"
	"fmt"
	"os"

	"casehub-backend/internal/casestudies"
	"github.com/spf13/cobra"
)

var ErrInvalidCases = errors.New("cases file has invalid records")

type RecordResult struct {
	Slug    string   `json:"slug" yaml:"slug"`
	Reasons []string `json:"reasons" yaml:"reasons"`
}

// ValidationReport lists schema violations, or when the shape is right, the
// records that break the publishing rules.
type ValidationReport struct {
	File    string         `json:"file" yaml:"file"`
	Records int            `json:"records" yaml:"records"`
	Valid   bool           `json:"valid" yaml:"valid"`
	Schema  []string       `json:"schema,omitempty" yaml:"schema,omitempty"`
	Invalid []RecordResult `json:"invalid,omitempty" yaml:"invalid,omitempty"`
}

func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <cases.json>",
		Short: "Check a cases.json export against the publishing rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := validateFile(args[0])
			if err != nil {
				return err
			}
			if rootOpts.Format == "text" {
				printReport(cmd, report)
			} else if err := writeStructured(cmd.OutOrStdout(), rootOpts.Format, report); err != nil {
				return err
			}
			if !report.Valid {
				return ErrInvalidCases
			}
			return nil
		},
	}
}

func validateFile(path string) (ValidationReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ValidationReport{}, err
	}
	problems, err := casestudies.SchemaErrors(raw)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(problems) > 0 {
		return ValidationReport{File: path, Schema: problems}, nil
	}
	items, err := casestudies.DecodeCollection(raw)
	if err != nil {
		return ValidationReport{}, fmt.Errorf("%s: %w", path, err)
	}

	report := ValidationReport{File: path, Records: len(items), Valid: true}
	seen := make(map[string]int, len(items))
	for i, rec := range items {
		reasons := casestudies.Validate(rec)
		if first, dup := seen[rec.Slug]; dup && rec.Slug != "" {
			reasons = append(reasons, fmt.Sprintf("slug duplicates record %d", first+1))
		} else {
			seen[rec.Slug] = i
		}
		if len(reasons) > 0 {
			report.Valid = false
			slug := rec.Slug
			if slug == "" {
				slug = fmt.Sprintf("#%d", i+1)
			}
			report.Invalid = append(report.Invalid, RecordResult{Slug: slug, Reasons: reasons})
		}
	}
	return report, nil
}

func printReport(cmd *cobra.Command, report ValidationReport) {
	out := cmd.OutOrStdout()
	if report.Valid {
		fmt.Fprintf(out, "%s: %d records, all valid\n", report.File, report.Records)
		return
	}
	if len(report.Schema) > 0 {
		fmt.Fprintf(out, "%s: does not match the cases.json schema\n", report.File)
		for _, p := range report.Schema {
			fmt.Fprintf(out, "  %s\n", p)
		}
		return
	}
	fmt.Fprintf(out, "%s: %d of %d records invalid\n", report.File, len(report.Invalid), report.Records)
	for _, r := range report.Invalid {
		for _, reason := range r.Reasons {
			fmt.Fprintf(out, "  %s: %s\n", r.Slug, reason)
		}
	}
}
