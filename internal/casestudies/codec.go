package casestudies

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"casehub-backend/internal/workflow"
)

var ErrMalformedImport = errors.New("malformed import")

// EncodeCollection renders items as the cases.json document.
func EncodeCollection(items []CaseRecord) ([]byte, error) {
	if items == nil {
		items = []CaseRecord{}
	}
	return json.MarshalIndent(items, "", "  ")
}

// DecodeCollection parses a cases.json document. The payload must be a JSON
// array; a missing status becomes draft.
func DecodeCollection(data []byte) ([]CaseRecord, error) {
	if err := requireArray(data); err != nil {
		return nil, err
	}
	var items []CaseRecord
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	if items == nil {
		items = []CaseRecord{}
	}
	for i := range items {
		items[i].Status = workflow.Normalize(items[i].Status)
		if !workflow.IsValidStatus(items[i].Status) {
			return nil, fmt.Errorf("%w: record %d has unknown status %q", ErrMalformedImport, i, items[i].Status)
		}
	}
	return items, nil
}

// CheckSlugs requires every record to carry a non-blank slug that no other
// record in items shares.
func CheckSlugs(items []CaseRecord) error {
	seen := make(map[string]int, len(items))
	for i, rec := range items {
		if strings.TrimSpace(rec.Slug) == "" {
			return fmt.Errorf("%w: record %d has no slug", ErrMalformedImport, i)
		}
		if first, dup := seen[rec.Slug]; dup {
			return fmt.Errorf("%w: duplicate slug %q (records %d and %d)", ErrMalformedImport, rec.Slug, first, i)
		}
		seen[rec.Slug] = i
	}
	return nil
}

// DecodeSnapshots parses a history document: an array of collections, each
// held to the same slug rules as a cases import.
func DecodeSnapshots(data []byte) ([][]CaseRecord, error) {
	if err := requireArray(data); err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedImport, err)
	}
	out := make([][]CaseRecord, 0, len(raw))
	for i, entry := range raw {
		items, err := DecodeCollection(entry)
		if err == nil {
			err = CheckSlugs(items)
		}
		if err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", i, err)
		}
		out = append(out, items)
	}
	return out, nil
}

func requireArray(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty payload", ErrMalformedImport)
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("%w: invalid json", ErrMalformedImport)
	}
	if trimmed[0] != '[' {
		return fmt.Errorf("%w: payload is not an array", ErrMalformedImport)
	}
	return nil
}
