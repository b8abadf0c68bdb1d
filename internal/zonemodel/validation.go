package zonemodel

import "fmt"

// ValidationError is a single field-level validation failure. The zone
// builder accumulates every independent failure rather than stopping at the
// first one, so a caller can display all problems to the user at once.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface so ValidationError can be used
// wherever a plain error is convenient (tests, logging), without implying
// that zone construction uses exceptions for control flow.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func newFieldError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}
