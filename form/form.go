package form

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// Kind is the wire discriminator of a form description.
type Kind string

const (
	KindSimple Kind = "form"
	KindModal  Kind = "modal"
	KindCustom Kind = "custom_form"
)

// State is the lifecycle position of a form instance.
type State uint8

const (
	StateBuilding State = iota
	StateSent
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateBuilding:
		return "building"
	case StateSent:
		return "sent"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Conn identifies the connection a reply arrived on. Callbacks receive the
// transport's connection value and may type-assert it to a richer interface.
type Conn interface {
	ID() string
}

// CloseFunc is invoked when the client closes a form without submitting.
type CloseFunc func(ctx context.Context, conn Conn)

// Form is implemented by SimpleForm, ModalForm and CustomForm.
type Form interface {
	json.Marshaler

	Kind() Kind
	State() State
	// Seal validates the form and moves it from Building to Sent.
	Seal() error
	// Handle interprets a decoded reply (nil when the client closed the form)
	// and invokes the matching callback. It succeeds at most once.
	Handle(ctx context.Context, conn Conn, raw any) error

	encode(opts EncodeOptions) ([]byte, error)
}

// EncodeOptions adjusts the description sent to the client.
type EncodeOptions struct {
	// PlainVisuals sends visual pseudo-buttons of simple forms without the
	// markers understood by the enhanced UI resource pack.
	PlainVisuals bool
}

// Encode returns the description of f using opts.
func Encode(f Form, opts EncodeOptions) ([]byte, error) {
	return f.encode(opts)
}

// Fingerprint returns the hex SHA-256 of the form's description. Forms with
// identical structure share a fingerprint.
func Fingerprint(f Form) (string, error) {
	b, err := f.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// base carries the state machine and the parts shared by every form kind.
type base struct {
	mu      sync.Mutex
	kind    Kind
	state   State
	err     error
	title   string
	onClose CloseFunc
}

func (b *base) Kind() Kind { return b.kind }

func (b *base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// modify runs fn under the lock if the form is still being built.
func (b *base) modify(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateBuilding {
		if b.err == nil {
			b.err = fmt.Errorf("%w (%s form in state %s)", ErrSealed, b.kind, b.state)
		}
		return
	}
	fn()
}

func (b *base) seal(check func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if b.state != StateBuilding {
		return fmt.Errorf("%w (%s form in state %s)", ErrSealed, b.kind, b.state)
	}
	if check != nil {
		if err := check(); err != nil {
			return fmt.Errorf("form: invalid %s form: %w", b.kind, err)
		}
	}
	b.state = StateSent
	return nil
}

func (b *base) resolve() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateBuilding:
		return ErrNotSent
	case StateResolved:
		return ErrResolved
	}
	b.state = StateResolved
	return nil
}

// snapshot runs fn under the lock and returns the sticky error, if any.
func (b *base) snapshot(fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	fn()
	return nil
}

func (b *base) closeFunc() CloseFunc {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.onClose
}
