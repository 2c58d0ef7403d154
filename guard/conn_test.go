package guard

import (
	"context"
	"errors"
	"sync"

	"github.com/SwouitAzia/formshandler/form"
	"github.com/SwouitAzia/formshandler/protocol"
)

// fakeConn records everything the guard does to a connection.
type fakeConn struct {
	id string

	mu           sync.Mutex
	closed       bool
	nextID       uint32
	pending      map[uint32]form.Form
	written      []protocol.Packet
	closeAll     int
	forgets      int
	disconnected string
	writeErr     error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id, pending: make(map[uint32]form.Form)}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *fakeConn) WritePacket(_ context.Context, pk protocol.Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, pk)
	return nil
}

func (c *fakeConn) NextFormID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

func (c *fakeConn) PendingForm(id uint32) (form.Form, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.pending[id]
	return f, ok
}

func (c *fakeConn) RegisterPendingForm(id uint32, f form.Form) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[id] = f
}

func (c *fakeConn) ForgetPendingForms() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgets++
	clear(c.pending)
}

func (c *fakeConn) CloseAllForms(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	c.closeAll++
	return nil
}

func (c *fakeConn) Disconnect(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.disconnected = reason
}

func (c *fakeConn) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
