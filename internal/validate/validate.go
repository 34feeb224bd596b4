// Package validate wraps go-playground/validator with the project's custom
// tags and turns its errors into apperror validation errors.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/movi/internal/apperror"
)

// ratingPattern is one or two digits with at most one decimal place.
var ratingPattern = regexp.MustCompile(`^\d{1,2}(\.\d)?$`)

// Rating bounds, inclusive.
const (
	MinRating = 1
	MaxRating = 10
)

var (
	once sync.Once
	v    *validator.Validate
)

// Validator returns the shared instance with custom tags registered:
//
//	rating: a string form rating: ratingPattern and within [1, 10]
func Validator() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation("rating", func(fl validator.FieldLevel) bool {
			_, ok := ParseRating(fl.Field().String())
			return ok
		})
	})
	return v
}

// ParseRating applies the rating rule to a form value. "8.55" and "11"
// are rejected; "7", "7.5" and "10" pass.
func ParseRating(s string) (float64, bool) {
	if !ratingPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < MinRating || f > MaxRating {
		return 0, false
	}
	return f, true
}

// Struct validates s. The first failing field is reported as an
// apperror validation error naming that field.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}
	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), message(fe))
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
	"rating":   "%s must be a number from 1 to 10 with at most one decimal",
	"numeric":  "%s must be numeric",
}

var paramMessages = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be at least %s",
	"lte":   "%s must be at most %s",
	"min":   "%s must be at least %s characters",
	"max":   "%s must be at most %s characters",
}

func message(fe validator.FieldError) string {
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := paramMessages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
