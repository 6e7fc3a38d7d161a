package dto

import (
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/gema-essay-api/internal/models"
)

// NewValidator returns a validator with the custom rules used by request DTOs.
func NewValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag or nil func.
	_ = validate.RegisterValidation("component_type", validateComponentType)
	return validate
}

func validateComponentType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, allowed := range models.ComponentTypes {
		if value == allowed {
			return true
		}
	}
	return false
}
