package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// RequestValidator plugs go-playground/validator into echo so handlers can
// call c.Validate on bound DTOs.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New()}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.v.Struct(i)
}

// validationMessage turns the first failed rule into the client message.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Invalid input"
	}
	fe := ve[0]
	switch {
	case fe.Tag() == "required" && (fe.Field() == "Email" || fe.Field() == "Password"):
		return "Email and password required"
	case fe.Field() == "Email":
		return "Email is not valid"
	case fe.Field() == "Name":
		return "Name is too long"
	}
	return "Invalid input"
}
