// Package httpx holds request parsing shared by the handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrBodyTooLarge = errors.New("body too large")
	ErrTrailingData = errors.New("body must contain a single JSON object")
)

// DecodeJSON decodes exactly one JSON value and rejects unknown fields.
func DecodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrTrailingData
	}
	return nil
}

// ValidationDetails maps each failing field to its rule, with the parameter
// when the rule has one ("oneof=a b").
func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		rule := err.Tag()
		if p := err.Param(); p != "" {
			rule += "=" + p
		}
		details[err.Field()] = rule
	}
	return details
}

func ParseLimitOffset(values url.Values, defaultLimit, maxLimit int) (int, int, error) {
	limit := defaultLimit
	offset := 0

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = parsed
	}

	rawOffset := strings.TrimSpace(values.Get("offset"))
	if rawOffset != "" {
		parsed, err := strconv.Atoi(rawOffset)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = parsed
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	return limit, offset, nil
}

// ReadBody reads at most limit bytes of the request body.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	return data, nil
}

// Confirmed reports whether the caller acknowledged replacing existing state.
func Confirmed(r *http.Request) bool {
	raw := strings.TrimSpace(r.URL.Query().Get("confirm"))
	if raw == "" {
		return false
	}
	ok, err := strconv.ParseBool(raw)
	return err == nil && ok
}
