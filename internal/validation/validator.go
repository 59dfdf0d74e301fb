// Package validation wraps go-playground/validator with the CMS rules: slugs,
// roles, workflow actions and the fixed taxonomies.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/workflow"
	"github.com/go-playground/validator/v10"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so error details match the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	rules := map[string]func(string) bool{
		"slug": slugPattern.MatchString,
		"role": func(s string) bool {
			_, err := workflow.ParseRole(s)
			return err == nil
		},
		"action": func(s string) bool {
			_, err := workflow.ParseAction(s)
			return err == nil
		},
		"category": func(s string) bool { return slices.Contains(casestudies.Categories, s) },
		"industry": func(s string) bool { return slices.Contains(casestudies.Industries, s) },
	}
	for tag, ok := range rules {
		_ = v.RegisterValidation(tag, stringRule(ok))
	}

	return &Validator{v: v}
}

func stringRule(ok func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s, isString := fl.Field().Interface().(string)
		return isString && ok(s)
	}
}

func (v *Validator) Struct(s interface{}) error {
	return v.v.Struct(s)
}

// ValidationErrors extracts field errors; any other error yields nil.
func (v *Validator) ValidationErrors(err error) validator.ValidationErrors {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}
