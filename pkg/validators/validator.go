package validators

import (
	"github.com/go-playground/validator/v10"
)

// CustomValidator adapts go-playground/validator to echo.Validator.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns validator.ValidationErrors on failure; the HTTP error
// handler turns those into invalid_input responses.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
