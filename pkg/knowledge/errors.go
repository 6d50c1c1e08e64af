package knowledge

import "fmt"

// ValidationError reports a malformed document or query.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IndexError reports a failure inside an index operation.
type IndexError struct {
	Operation  string
	DocumentID string
	Err        error
}

func (e *IndexError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("index %s failed for %s: %v", e.Operation, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("index %s failed: %v", e.Operation, e.Err)
}

func (e *IndexError) Unwrap() error {
	return e.Err
}
