package core

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"slices"
	"strings"
	"time"
)

// ValidationError is a single rejected setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every rejected setting of one validation pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	parts := make([]string, len(e))
	for i := range e {
		parts[i] = e[i].Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e ValidationErrors) HasErrors() bool { return len(e) > 0 }

func (e *ValidationErrors) Add(field, message string) {
	*e = append(*e, ValidationError{Field: field, Message: message})
}

// Validator accumulates errors across chained checks; call Validate at the
// end to get them as one error.
type Validator struct {
	errors ValidationErrors
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) fail(field, format string, args ...any) *Validator {
	v.errors.Add(field, fmt.Sprintf(format, args...))
	return v
}

func atLeast[T cmp.Ordered](v *Validator, field string, value, min T) *Validator {
	if value < min {
		return v.fail(field, "must be at least %v", min)
	}
	return v
}

func atMost[T cmp.Ordered](v *Validator, field string, value, max T) *Validator {
	if value > max {
		return v.fail(field, "must be at most %v", max)
	}
	return v
}

// Required rejects empty or whitespace-only values.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.fail(field, "is required")
	}
	return v
}

func (v *Validator) MinDuration(field string, value, min time.Duration) *Validator {
	return atLeast(v, field, value, min)
}

func (v *Validator) MaxDuration(field string, value, max time.Duration) *Validator {
	return atMost(v, field, value, max)
}

func (v *Validator) Min(field string, value, min int) *Validator {
	return atLeast(v, field, value, min)
}

func (v *Validator) Max(field string, value, max int) *Validator {
	return atMost(v, field, value, max)
}

// Range requires min <= value <= max. NaN is always rejected.
func (v *Validator) Range(field string, value, min, max float64) *Validator {
	if math.IsNaN(value) || value < min || value > max {
		return v.fail(field, "must be between %g and %g", min, max)
	}
	return v
}

// OneOf requires value to be in allowed. An empty value is accepted so
// optional settings can fall back to their defaults.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" || slices.Contains(allowed, value) {
		return v
	}
	return v.fail(field, "must be one of: %s", strings.Join(allowed, ", "))
}

// FilesExist requires at least one path and checks each with FileExists.
func (v *Validator) FilesExist(field string, paths []string) *Validator {
	if len(paths) == 0 {
		return v.fail(field, "at least one file is required")
	}
	for _, p := range paths {
		v.FileExists(field+"["+p+"]", p)
	}
	return v
}

// FileExists requires path to be a regular file when it is set.
func (v *Validator) FileExists(field, path string) *Validator {
	if path == "" {
		return v
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return v.fail(field, "file does not exist")
	case err != nil:
		return v.fail(field, "cannot access file: %v", err)
	case info.IsDir():
		return v.fail(field, "is a directory, expected file")
	}
	return v
}

// Custom records message for field when check reports false.
func (v *Validator) Custom(field string, check func() bool, message string) *Validator {
	if !check() {
		v.errors.Add(field, message)
	}
	return v
}

func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

// Validate returns the collected errors, or nil when every check passed.
func (v *Validator) Validate() error {
	if !v.errors.HasErrors() {
		return nil
	}
	return v.errors
}

// ValidateThreshold checks a Jaccard similarity threshold.
func ValidateThreshold(field string, threshold float64) error {
	return NewValidator().Range(field, threshold, 0, 1).Validate()
}
