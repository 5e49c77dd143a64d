package utils

import (
	"github.com/examhub/submission-service/internal/models"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/examhub/submission-service/internal/errors"
)

// Validator wraps go-playground validation with the service's custom rules.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()
	v.RegisterValidation("question_type", validateQuestionType)
	return &Validator{validate: v}
}

// Validate checks struct tags and returns typed field errors.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		if ve := apperrors.ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func validateQuestionType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	for _, t := range models.AllQuestionTypes {
		if string(t) == value {
			return true
		}
	}
	return false
}
