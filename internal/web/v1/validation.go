package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

// sanitizeValidationError returns a user-friendly message for binding and
// validation errors. Raw validator and decoder output never reaches clients.
func sanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		return safeMessage(invalid.Message)
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		return describeFieldError(fieldErrs[0])
	}

	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return "Request body is empty"
	case errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &syntaxErr):
		return "Malformed JSON body"
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return fmt.Sprintf("%s has the wrong type", typeErr.Field)
	}
	return safeMessage(err.Error())
}

// describeFieldError names the field the way the app sends it.
func describeFieldError(fe validator.FieldError) string {
	field := snakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return field + " is invalid"
}

// safeMessage passes short plain messages through and hides anything that
// looks like internal structure.
func safeMessage(msg string) string {
	for _, marker := range []string{"validation", "Key:", "Error:", "cannot unmarshal", "bind"} {
		if strings.Contains(msg, marker) {
			return "Invalid request"
		}
	}
	if msg == "" || len(msg) >= 100 {
		return "Invalid request"
	}
	return msg
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
