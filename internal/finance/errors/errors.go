package errors

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

// NewFieldError is a validation error tied to a form field.
func NewFieldError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

func IsValidationError(err error) bool {
	var validationError *ValidationError
	return errors.As(err, &validationError)
}

type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	errorMessages := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		errorMessages[i] = err.Error()
	}
	return fmt.Sprintf("multiple validation errors: %s", strings.Join(errorMessages, "; "))
}

func (ve *ValidationErrors) Add(err error) {
	ve.Errors = append(ve.Errors, err)
}

// OrNil returns ve when it holds at least one error.
func (ve *ValidationErrors) OrNil() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ve
}

// Messages lists the individual messages, for rendering next to a form.
func (ve *ValidationErrors) Messages() []string {
	msgs := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		msgs[i] = err.Error()
	}
	return msgs
}

func IsValidationErrors(err error) bool {
	var validationErrors *ValidationErrors
	return errors.As(err, &validationErrors)
}

// Messages flattens a ValidationError or ValidationErrors into messages.
// Other errors yield nil.
func Messages(err error) []string {
	var many *ValidationErrors
	if errors.As(err, &many) {
		return many.Messages()
	}
	var one *ValidationError
	if errors.As(err, &one) {
		return []string{one.Msg}
	}
	return nil
}
