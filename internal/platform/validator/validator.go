// Package validator adapts go-playground/validator to echo request binding.
package validator

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var clockPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the isodate (yyyy-MM-dd) and clock (HH:MM)
// tags registered.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		return clockPattern.MatchString(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// Validate implements echo.Validator. Failures become a 400 listing the
// offending fields.
func (val *Validator) Validate(i interface{}) error {
	err := val.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s obbligatorio", field)
	case "oneof":
		return fmt.Sprintf("%s deve essere uno tra: %s", field, fe.Param())
	case "isodate":
		return fmt.Sprintf("%s deve essere una data yyyy-MM-dd", field)
	case "clock":
		return fmt.Sprintf("%s deve essere un orario HH:MM", field)
	case "min":
		return fmt.Sprintf("%s: minimo %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s: massimo %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s non valido (%s)", field, fe.Tag())
	}
}
