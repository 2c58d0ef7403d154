package form

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("form validation failed")
	// ErrSealed is reported when a form is modified or sealed after being sent.
	ErrSealed = errors.New("form already sent")
	// ErrResolved is returned by Handle when the form already processed a reply.
	ErrResolved = errors.New("form already resolved")
	// ErrNotSent is returned by Handle for a form that was never sealed.
	ErrNotSent = errors.New("form not sent")
)

// ValidationError describes a reply that does not fit the form at all.
type ValidationError struct {
	Kind   Kind
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form validation failed (%s): %s", e.Kind, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(k Kind, format string, args ...any) error {
	return &ValidationError{Kind: k, Reason: fmt.Sprintf(format, args...)}
}

// typeName describes a decoded JSON value for error messages.
func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, int:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
