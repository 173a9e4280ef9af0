package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"kart-ledger/internal/model"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// ValidateRequest runs the struct tags of v and turns the first failure into
// a validation DomainError.
func ValidateRequest(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewValidationError(err.Error())
	}

	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return model.NewValidationError(fmt.Sprintf("%s is required", field))
	case "email":
		return model.NewValidationError(fmt.Sprintf("%s must be a valid email address", field))
	case "oneof":
		return model.NewValidationError(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "gt", "gte", "min":
		return model.NewValidationError(fmt.Sprintf("%s must be at least %s", field, minParam(fe)))
	default:
		return model.NewValidationError(fmt.Sprintf("%s is invalid", field))
	}
}

func minParam(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		return fe.Param() + " (exclusive)"
	}
	return fe.Param()
}
