// Package form holds the static validation schemas checked before any
// request is sent. Rules are go-playground/validator tags.
package form

import (
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Values maps a field name to its submitted value
type Values map[string]any

// Field is one schema entry. Messages maps a failing validator tag to
// the text shown for it. EqualTo names another field whose value is
// handed to cross-field tags such as eqfield.
type Field struct {
	Name     string
	Rules    string
	Messages map[string]string
	EqualTo  string
}

// Schema is an ordered list of fields
type Schema []Field

// FieldErrors maps a field name to its first failing message
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var (
	validate = newValidator()

	looseEmail = regexp.MustCompile(`^\S+@\S+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return looseEmail.MatchString(fl.Field().String())
	})
	return v
}

// Check evaluates every field in order and returns the failures, or nil
func (s Schema) Check(values Values) FieldErrors {
	var errs FieldErrors

	for _, f := range s {
		v := values[f.Name]
		if v == nil {
			v = ""
		}

		var err error
		if f.EqualTo != "" {
			other := values[f.EqualTo]
			if other == nil {
				other = ""
			}
			err = validate.VarWithValue(v, other, f.Rules)
		} else {
			err = validate.Var(v, f.Rules)
		}
		if err == nil {
			continue
		}

		if errs == nil {
			errs = FieldErrors{}
		}
		errs[f.Name] = f.message(err)
	}

	return errs
}

// Validate is Check returned as an error
func (s Schema) Validate(values Values) error {
	if errs := s.Check(values); len(errs) > 0 {
		return errs
	}
	return nil
}

func (f Field) message(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return "Invalid value"
	}

	tag := verrs[0].Tag()
	if msg, ok := f.Messages[tag]; ok {
		return msg
	}
	return "Invalid value"
}
