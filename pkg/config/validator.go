package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// fieldNamePattern matches record field names usable in configuration lists.
var fieldNamePattern = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("field_name", validateFieldName)
}

func validateFieldName(fl validator.FieldLevel) bool {
	return fieldNamePattern.MatchString(fl.Field().String())
}
