package validator

import (
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	// Custom validators
	v.RegisterValidation("projection_scope", validateProjectionScope)
	v.RegisterValidation("agreement_permission", validateAgreementPermission)
	v.RegisterValidation("detail_visibility", validateDetailVisibility)
	v.RegisterValidation("member_role", validateMemberRole)

	return &Validator{validate: v}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

func validateProjectionScope(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "date_only", "title", "full":
		return true
	}
	return false
}

func validateAgreementPermission(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "read", "write":
		return true
	}
	return false
}

func validateDetailVisibility(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "visible", "busy":
		return true
	}
	return false
}

func validateMemberRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "owner", "admin", "member", "viewer":
		return true
	}
	return false
}
