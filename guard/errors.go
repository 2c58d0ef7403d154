package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation is matched by every error caused by a client
	// breaking the form protocol.
	ErrProtocolViolation = errors.New("form protocol violation")
	// ErrFormMismatch is reported for a reply to a form that is not the
	// connection's current form.
	ErrFormMismatch = fmt.Errorf("%w: form id mismatch", ErrProtocolViolation)
	// ErrUnauthorizedPacket is reported for a filtered packet sent while a
	// form is open.
	ErrUnauthorizedPacket = fmt.Errorf("%w: packet not allowed while a form is open", ErrProtocolViolation)
	// ErrUnknownForm is reported when the connection has no pending form for
	// an accepted reply.
	ErrUnknownForm = errors.New("no pending form registered for reply")
	// ErrNotConnected is returned by SendForm for a closed connection.
	ErrNotConnected = errors.New("connection closed")
)

// PanicError wraps a value recovered from a form callback.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("form callback panicked: %v", e.Value) }
