// Package reporter records protocol violations committed by clients while a
// form is open.
//
// The guard emits one Violation per offence. A Reporter decides where it
// goes: the structured log (Logger), a Redis stream shared by every server
// instance (Redis), or several of them at once (Multi).
package reporter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a violation.
type Kind string

const (
	KindFormMismatch       Kind = "form_mismatch"
	KindUnauthorizedPacket Kind = "unauthorized_packet"
	KindMalformedResponse  Kind = "malformed_response"
	KindInvalidResponse    Kind = "invalid_response"
	KindUnknownForm        Kind = "unknown_form"
	KindFormState          Kind = "form_state"
	KindCallbackPanic      Kind = "callback_panic"
)

// Violation describes one offence.
type Violation struct {
	ID     string    `json:"id"`
	Time   time.Time `json:"time"`
	ConnID string    `json:"conn_id"`
	Kind   Kind      `json:"kind"`
	// FormID is the form outstanding when the violation happened.
	FormID  uint32 `json:"form_id"`
	HasForm bool   `json:"has_form"`
	// PacketID is the packet that triggered the violation.
	PacketID uint32 `json:"packet_id"`
	Detail   string `json:"detail,omitempty"`
	// Disconnected is set when the policy dropped the connection.
	Disconnected bool `json:"disconnected"`
}

// New returns a violation stamped with a fresh ID and the current time.
func New(kind Kind, connID string, packetID uint32, err error) Violation {
	v := Violation{
		ID:       uuid.NewString(),
		Time:     time.Now().UTC(),
		ConnID:   connID,
		Kind:     kind,
		PacketID: packetID,
	}
	if err != nil {
		v.Detail = err.Error()
	}
	return v
}

// Reporter receives violations. Implementations must be safe for concurrent
// use; Report is called synchronously from the packet path.
type Reporter interface {
	Report(ctx context.Context, v Violation) error
}

// Func adapts a function to Reporter.
type Func func(ctx context.Context, v Violation) error

func (f Func) Report(ctx context.Context, v Violation) error { return f(ctx, v) }

// Discard drops every violation.
var Discard Reporter = Func(func(context.Context, Violation) error { return nil })

// Multi fans a violation out to every reporter. All reporters are called
// even when some fail; the errors are joined.
func Multi(reporters ...Reporter) Reporter {
	return multi(reporters)
}

type multi []Reporter

func (m multi) Report(ctx context.Context, v Violation) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Report(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger writes violations to a structured log.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns a reporter logging to log, or to slog.Default when log
// is nil.
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

func (l *Logger) Report(ctx context.Context, v Violation) error {
	attrs := []slog.Attr{
		slog.String("violation_id", v.ID),
		slog.String("conn_id", v.ConnID),
		slog.String("kind", string(v.Kind)),
		slog.Uint64("packet_id", uint64(v.PacketID)),
		slog.Bool("disconnected", v.Disconnected),
	}
	if v.HasForm {
		attrs = append(attrs, slog.Uint64("form_id", uint64(v.FormID)))
	}
	if v.Detail != "" {
		attrs = append(attrs, slog.String("detail", v.Detail))
	}
	l.log.LogAttrs(ctx, slog.LevelWarn, "form.violation", attrs...)
	return nil
}
