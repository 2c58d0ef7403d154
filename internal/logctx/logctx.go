package logctx

import (
	"context"
	"log/slog"
)

// Handler adds the connection and form attached to the context to every
// record.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if cd, ok := ctx.Value(connDataKey{}).(*ConnData); ok {
		r.AddAttrs(slog.Group("conn",
			slog.String("id", cd.ConnID),
			slog.String("remote_addr", cd.RemoteAddr),
		))
	}

	if fd, ok := ctx.Value(formDataKey{}).(*FormData); ok {
		r.AddAttrs(slog.Group("form",
			slog.Uint64("id", uint64(fd.FormID)),
			slog.String("kind", fd.Kind),
		))
	}

	if pd, ok := ctx.Value(packetDataKey{}).(*PacketData); ok {
		r.AddAttrs(slog.Group("packet",
			slog.Uint64("id", uint64(pd.PacketID)),
			slog.String("name", pd.Name),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{h.Handler.WithGroup(name)}
}

type connDataKey struct{}

type ConnData struct {
	ConnID     string
	RemoteAddr string
}

func WithConnData(ctx context.Context, data *ConnData) context.Context {
	return context.WithValue(ctx, connDataKey{}, data)
}

func ConnDataFrom(ctx context.Context) (*ConnData, bool) {
	cd, ok := ctx.Value(connDataKey{}).(*ConnData)
	return cd, ok
}

type formDataKey struct{}

type FormData struct {
	FormID uint32
	Kind   string
}

func WithFormData(ctx context.Context, data *FormData) context.Context {
	return context.WithValue(ctx, formDataKey{}, data)
}

type packetDataKey struct{}

type PacketData struct {
	PacketID uint32
	Name     string
}

func WithPacketData(ctx context.Context, data *PacketData) context.Context {
	return context.WithValue(ctx, packetDataKey{}, data)
}
