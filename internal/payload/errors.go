package payload

import "fmt"

// ValidationError reports a builder misuse. It is a programmer error and
// must not be retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func nullOrEmpty(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s cannot be null or empty", field)}
}

func isNull(field string) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s == null", field)}
}
