// Package validate is the input-validation boundary between the HTTP layer
// and the scheduling core. Out-of-range values are rejected here so the core
// never sees them.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// InputError describes a rejected input field.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// maxFrontLen is the longest accepted card front, measured after trimming.
const maxFrontLen = 1000

// Set names may use letters, digits, underscores, hyphens, spaces and German
// special characters. This also rules out path separators and "..".
var setNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_\- äöüÄÖÜß]+$`)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterValidation("setname", func(fl validator.FieldLevel) bool {
		return setNamePattern.MatchString(fl.Field().String())
	})
	return val
}

// Quality checks that a quality score is in the SM-2 range 0-5.
func Quality(quality int) error {
	if err := v.Var(quality, "gte=0,lte=5"); err != nil {
		return &InputError{
			Field:  "quality",
			Reason: fmt.Sprintf("score must be between 0 and 5, got %d", quality),
		}
	}
	return nil
}

// CardFront trims and checks a card front text: non-empty and at most 1000
// characters after trimming.
func CardFront(front string) (string, error) {
	front = strings.TrimSpace(front)
	if front == "" {
		return "", &InputError{Field: "front", Reason: "card front cannot be empty"}
	}
	if err := v.Var(front, fmt.Sprintf("max=%d", maxFrontLen)); err != nil {
		return "", &InputError{
			Field:  "front",
			Reason: fmt.Sprintf("card front text is too long (max %d characters)", maxFrontLen),
		}
	}
	return front, nil
}

// SetName trims and checks a vocabulary set name.
func SetName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &InputError{Field: "set_name", Reason: "set name cannot be empty"}
	}
	if err := v.Var(name, "max=100,setname"); err != nil {
		return "", &InputError{
			Field:  "set_name",
			Reason: "set name must contain only letters, numbers, underscores, hyphens and spaces",
		}
	}
	return name, nil
}
