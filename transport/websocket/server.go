// Package websocket is a reference transport carrying form packets as JSON
// text frames over a websocket. Every inbound packet is handed to the guard
// before the application sees it.
//
// Frames are envelopes:
//
//	{"id": 101, "payload": {"formId": 3, "formData": "[true, 0]"}}
package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/SwouitAzia/formshandler/guard"
	"github.com/SwouitAzia/formshandler/internal/logctx"
	"github.com/SwouitAzia/formshandler/protocol"
)

const (
	readLimit  = 512 * 1024
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// ConnectFunc runs once a client is connected, on its own goroutine.
type ConnectFunc func(ctx context.Context, c *Conn)

// PacketFunc receives the packets the guard let through.
type PacketFunc func(ctx context.Context, c *Conn, pk protocol.Packet)

// Server accepts websocket clients and runs their packets through a guard.
type Server struct {
	guard     *guard.Guard
	log       *slog.Logger
	upgrader  gws.Upgrader
	onConnect ConnectFunc
	onPacket  PacketFunc

	mu    sync.RWMutex
	conns map[string]*Conn
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithConnectHandler sets the function run for every new client.
func WithConnectHandler(fn ConnectFunc) Option {
	return func(s *Server) { s.onConnect = fn }
}

// WithPacketHandler sets the function receiving packets the guard passed.
func WithPacketHandler(fn PacketFunc) Option {
	return func(s *Server) { s.onPacket = fn }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer constructs a Server with defaults and applies options.
func NewServer(g *guard.Guard, opts ...Option) *Server {
	s := &Server{
		guard: g,
		log:   slog.Default(),
		upgrader: gws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		conns: make(map[string]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conn returns the connected client with id.
func (s *Server) Conn(id string) (*Conn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

// ConnCount returns the number of connected clients.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// ServeHTTP upgrades the request and serves the client until it leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WarnContext(r.Context(), "ws.upgrade.failed", slog.String("err", err.Error()))
		return
	}
	c := newConn(uuid.NewString(), ws, s.guard)
	ctx := logctx.WithConnData(context.WithoutCancel(r.Context()), &logctx.ConnData{ConnID: c.id, RemoteAddr: c.remote})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.guard.Connected(c)
	s.log.InfoContext(ctx, "ws.connected")

	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		s.guard.Disconnected(c)
		c.close()
		s.log.InfoContext(ctx, "ws.disconnected")
	}()

	go s.ping(ctx, c)
	if s.onConnect != nil {
		go s.onConnect(ctx, c)
	}
	s.readLoop(ctx, c)
}

// readLoop handles the packets of c one at a time, in arrival order.
func (s *Server) readLoop(ctx context.Context, c *Conn) {
	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseNormalClosure) && c.Connected() {
				s.log.WarnContext(ctx, "ws.read.failed", slog.String("err", err.Error()))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		if typ != gws.TextMessage {
			continue
		}
		pk, err := Unmarshal(data)
		if err != nil {
			s.log.WarnContext(ctx, "ws.frame.rejected", slog.String("err", err.Error()))
			var fe *FrameError
			if errors.As(err, &fe) {
				s.guard.HandleMalformed(ctx, c, fe.PacketID, fe.Err)
			}
			continue
		}
		if s.guard.HandleInbound(ctx, c, pk) == guard.Cancel {
			continue
		}
		if s.onPacket != nil {
			s.onPacket(ctx, c, pk)
		}
	}
}

func (s *Server) ping(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ws.WriteControl(gws.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
