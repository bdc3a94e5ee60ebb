// Package validate adapts go-playground/validator to echo's Validator
// interface so request structs can declare their constraints in tags.
package validate

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// RequestValidator wraps a shared validator instance.
type RequestValidator struct {
	validate *validator.Validate
}

// New constructs a RequestValidator.
func New() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator.  Tag violations come back as a 400
// instead of a 500.
func (v *RequestValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
