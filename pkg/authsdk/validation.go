package authsdk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance, it caches struct metadata.
var validate = validator.New()

// validateInput checks a request struct before anything goes on the wire.
func validateInput(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return newAuthError(ErrInvalidInput, 0, "", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}

	e := newAuthError(ErrInvalidInput, 0, "", nil)
	e.Message = "invalid input: " + strings.Join(msgs, ", ")
	return e
}
