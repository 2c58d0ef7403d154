package guard

import (
	"context"

	"github.com/SwouitAzia/formshandler/form"
	"github.com/SwouitAzia/formshandler/protocol"
)

// Conn is the transport's view of one client connection.
type Conn interface {
	form.Conn

	// Connected reports whether packets can still be exchanged.
	Connected() bool
	// WritePacket sends pk to the client.
	WritePacket(ctx context.Context, pk protocol.Packet) error
	// NextFormID allocates an ID for a form sent on this connection.
	NextFormID() uint32

	// PendingForm returns the form registered under id.
	PendingForm(id uint32) (form.Form, bool)
	// RegisterPendingForm records f as awaiting a reply under id.
	RegisterPendingForm(id uint32, f form.Form)
	// ForgetPendingForms drops every registered form.
	ForgetPendingForms()
	// CloseAllForms makes the client close every form it displays.
	CloseAllForms(ctx context.Context) error

	// Disconnect drops the connection, showing reason to the client.
	Disconnect(reason string)
}

// Verdict tells the transport what to do with an inbound packet.
type Verdict uint8

const (
	// Pass lets the packet continue to the other consumers.
	Pass Verdict = iota
	// Cancel drops the packet.
	Cancel
)

func (v Verdict) String() string {
	if v == Cancel {
		return "cancel"
	}
	return "pass"
}
