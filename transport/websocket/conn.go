package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/SwouitAzia/formshandler/form"
	"github.com/SwouitAzia/formshandler/guard"
	"github.com/SwouitAzia/formshandler/protocol"
)

const writeWait = 10 * time.Second

// Conn is one client connected over a websocket. It implements guard.Conn.
type Conn struct {
	id     string
	remote string
	ws     *gws.Conn
	guard  *guard.Guard

	writeMu sync.Mutex
	closed  atomic.Bool
	nextID  atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]form.Form
}

var _ guard.Conn = (*Conn)(nil)

func newConn(id string, ws *gws.Conn, g *guard.Guard) *Conn {
	return &Conn{
		id:      id,
		remote:  ws.RemoteAddr().String(),
		ws:      ws,
		guard:   g,
		pending: make(map[uint32]form.Form),
	}
}

func (c *Conn) ID() string { return c.id }

// RemoteAddr returns the client's network address.
func (c *Conn) RemoteAddr() string { return c.remote }

func (c *Conn) Connected() bool { return !c.closed.Load() }

func (c *Conn) WritePacket(ctx context.Context, pk protocol.Packet) error {
	if c.closed.Load() {
		return guard.ErrNotConnected
	}
	data, err := Marshal(pk)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	return c.ws.WriteMessage(gws.TextMessage, data)
}

func (c *Conn) NextFormID() uint32 { return c.nextID.Add(1) - 1 }

func (c *Conn) PendingForm(id uint32) (form.Form, bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	f, ok := c.pending[id]
	return f, ok
}

func (c *Conn) RegisterPendingForm(id uint32, f form.Form) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.pending[id] = f
}

func (c *Conn) ForgetPendingForms() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	clear(c.pending)
}

// PendingCount returns the number of forms awaiting a reply.
func (c *Conn) PendingCount() int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return len(c.pending)
}

func (c *Conn) CloseAllForms(ctx context.Context) error {
	c.ForgetPendingForms()
	return c.WritePacket(ctx, &protocol.ClientboundCloseForm{})
}

// Disconnect sends a close frame carrying reason and closes the socket.
func (c *Conn) Disconnect(reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	msg := gws.FormatCloseMessage(gws.ClosePolicyViolation, truncateReason(reason))
	_ = c.ws.WriteControl(gws.CloseMessage, msg, time.Now().Add(writeWait))
	_ = c.ws.Close()
}

// SendForm sends f through the guard.
func (c *Conn) SendForm(ctx context.Context, f form.Form) (uint32, error) {
	return c.guard.SendForm(ctx, c, f)
}

func (c *Conn) close() {
	if c.closed.CompareAndSwap(false, true) {
		_ = c.ws.Close()
	}
}

// Close frame payloads are limited to 123 bytes of reason.
func truncateReason(s string) string {
	if len(s) <= 123 {
		return s
	}
	return s[:123]
}
