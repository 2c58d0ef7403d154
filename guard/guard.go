package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SwouitAzia/formshandler/form"
	"github.com/SwouitAzia/formshandler/internal/logctx"
	"github.com/SwouitAzia/formshandler/protocol"
	"github.com/SwouitAzia/formshandler/reporter"
	"github.com/SwouitAzia/formshandler/sessions"
)

const tracerName = "github.com/SwouitAzia/formshandler/guard"

// Guard applies the form protocol rules. It is safe for concurrent use by
// many connections; packets of a single connection must be handed to it
// one at a time, in arrival order.
type Guard struct {
	store    *sessions.Store
	log      *slog.Logger
	reporter reporter.Reporter
	tracer   trace.Tracer
	encode   form.EncodeOptions
	policy   atomic.Pointer[Policy]
}

// New constructs a Guard with defaults and applies options.
func New(opts ...Option) *Guard {
	g := &Guard{
		store:  sessions.NewStore(),
		log:    slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	g.setPolicy(DefaultPolicy())
	for _, opt := range opts {
		opt(g)
	}
	if g.reporter == nil {
		g.reporter = reporter.NewLogger(g.log)
	}
	return g
}

// Store returns the session store.
func (g *Guard) Store() *sessions.Store { return g.store }

// Policy returns the policy in effect.
func (g *Guard) Policy() Policy { return *g.policy.Load() }

// SetPolicy replaces the policy. Packets already being handled finish
// under the previous one.
func (g *Guard) SetPolicy(p Policy) {
	g.setPolicy(p)
	g.log.Info("form.policy.updated",
		slog.String("action", p.Action.String()),
		slog.Bool("deny_list", g.Policy().Filter.IsDenyList()),
	)
}

func (g *Guard) setPolicy(p Policy) {
	if p.Filter == nil {
		p.Filter = DefaultFilter()
	}
	g.policy.Store(&p)
}

// Connected opens the session of conn.
func (g *Guard) Connected(conn Conn) {
	g.store.Open(conn.ID())
}

// Disconnected drops the session of conn and its pending forms.
func (g *Guard) Disconnected(conn Conn) {
	g.store.Remove(conn.ID())
	conn.ForgetPendingForms()
}

// HandleInbound inspects a packet received from conn and reports whether
// it must be dropped.
func (g *Guard) HandleInbound(ctx context.Context, conn Conn, pk protocol.Packet) Verdict {
	if !conn.Connected() {
		return Pass
	}
	sess, ok := g.store.Lookup(conn.ID())
	if !ok {
		return Pass
	}
	ctx = withConn(ctx, conn)

	if reply, ok := pk.(*protocol.ModalFormResponse); ok {
		g.handleReply(ctx, conn, sess, reply)
		return Cancel
	}

	formID, open := sess.CurrentFormID()
	if !open {
		return Pass
	}
	pol := g.policy.Load()
	if pol.Filter.Permits(pk.ID()) {
		return Pass
	}

	ctx = logctx.WithPacketData(ctx, &logctx.PacketData{PacketID: uint32(pk.ID()), Name: pk.ID().String()})
	g.reset(ctx, conn, sess)
	v := reporter.New(reporter.KindUnauthorizedPacket, conn.ID(), uint32(pk.ID()),
		fmt.Errorf("%w: %s", ErrUnauthorizedPacket, pk.ID()))
	v.FormID, v.HasForm = formID, true
	g.violation(ctx, conn, pol, v)
	return Cancel
}

func (g *Guard) handleReply(ctx context.Context, conn Conn, sess *sessions.Session, pk *protocol.ModalFormResponse) {
	ctx, span := g.tracer.Start(ctx, "formshandler.reply", trace.WithAttributes(
		attribute.String("formshandler.conn.id", conn.ID()),
		attribute.Int64("formshandler.form.id", int64(pk.FormID)),
	))
	defer span.End()
	fd := &logctx.FormData{FormID: pk.FormID}
	ctx = logctx.WithFormData(ctx, fd)

	pol := g.policy.Load()
	current, open := sess.CurrentFormID()
	if !open || current != pk.FormID {
		err := fmt.Errorf("%w: reply to %d", ErrFormMismatch, pk.FormID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "form id mismatch")
		g.reset(ctx, conn, sess)
		v := reporter.New(reporter.KindFormMismatch, conn.ID(), uint32(protocol.IDModalFormResponse), err)
		v.FormID, v.HasForm = current, open
		g.violation(ctx, conn, pol, v)
		return
	}
	// A callback may send a follow-up form; only this form's ID is cleared.
	defer sess.Resolve(pk.FormID)

	err := g.deliver(ctx, conn, pk, fd)
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "form reply rejected")

	v := reporter.New(kindOf(err), conn.ID(), uint32(protocol.IDModalFormResponse), err)
	v.FormID, v.HasForm = pk.FormID, true
	switch v.Kind {
	case reporter.KindMalformedResponse:
		g.violation(ctx, conn, pol, v)
	case reporter.KindInvalidResponse:
		g.log.WarnContext(ctx, "form.reply.rejected", slog.String("err", err.Error()))
		g.report(ctx, v)
	default:
		g.log.ErrorContext(ctx, "form.reply.failed", slog.String("err", err.Error()))
		g.report(ctx, v)
	}
}

// deliver decodes the reply and runs the form's callbacks. Panics are
// returned as *PanicError.
func (g *Guard) deliver(ctx context.Context, conn Conn, pk *protocol.ModalFormResponse, fd *logctx.FormData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	raw, _, err := protocol.DecodeReply(pk)
	if err != nil {
		return err
	}
	f, ok := conn.PendingForm(pk.FormID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownForm, pk.FormID)
	}
	fd.Kind = string(f.Kind())
	return f.Handle(ctx, conn, raw)
}

func kindOf(err error) reporter.Kind {
	var pe *PanicError
	switch {
	case errors.Is(err, protocol.ErrMalformedResponse):
		return reporter.KindMalformedResponse
	case errors.Is(err, form.ErrValidation):
		return reporter.KindInvalidResponse
	case errors.Is(err, form.ErrResolved), errors.Is(err, form.ErrNotSent):
		return reporter.KindFormState
	case errors.As(err, &pe):
		return reporter.KindCallbackPanic
	case errors.Is(err, ErrUnknownForm):
		return reporter.KindUnknownForm
	default:
		return reporter.KindInvalidResponse
	}
}

// HandleOutbound applies the send rules to a packet about to be written to
// conn. Only form requests are affected.
func (g *Guard) HandleOutbound(ctx context.Context, conn Conn, pk protocol.Packet) {
	req, ok := pk.(*protocol.ModalFormRequest)
	if !ok || !conn.Connected() {
		return
	}
	sess := g.store.Get(conn.ID())
	if sess.HasForm() {
		if err := conn.CloseAllForms(ctx); err != nil {
			g.log.WarnContext(ctx, "form.close_all.failed", slog.String("conn_id", conn.ID()), slog.String("err", err.Error()))
		}
	}
	sess.SetCurrentFormID(req.FormID)
	conn.ForgetPendingForms()
}

// HandleOutboundBatch is HandleOutbound for a broadcast. Only a single
// packet sent to a single connection is considered.
func (g *Guard) HandleOutboundBatch(ctx context.Context, targets []Conn, packets []protocol.Packet) {
	if len(targets) != 1 || len(packets) != 1 {
		return
	}
	g.HandleOutbound(ctx, targets[0], packets[0])
}

// SendForm seals f and sends it to conn. It returns the ID the reply will
// carry. A form can be sent once.
func (g *Guard) SendForm(ctx context.Context, conn Conn, f form.Form) (uint32, error) {
	ctx, span := g.tracer.Start(ctx, "formshandler.send", trace.WithAttributes(
		attribute.String("formshandler.conn.id", conn.ID()),
		attribute.String("formshandler.form.kind", string(f.Kind())),
	))
	defer span.End()

	if !conn.Connected() {
		return 0, ErrNotConnected
	}
	if err := f.Seal(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seal failed")
		return 0, fmt.Errorf("send form: %w", err)
	}
	data, err := form.Encode(f, g.encode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return 0, fmt.Errorf("send form: %w", err)
	}

	id := conn.NextFormID()
	span.SetAttributes(attribute.Int64("formshandler.form.id", int64(id)))
	pk := &protocol.ModalFormRequest{FormID: id, FormData: data}
	g.HandleOutbound(ctx, conn, pk)
	conn.RegisterPendingForm(id, f)

	if err := conn.WritePacket(ctx, pk); err != nil {
		if sess, ok := g.store.Lookup(conn.ID()); ok {
			sess.Resolve(id)
		}
		conn.ForgetPendingForms()
		span.RecordError(err)
		span.SetStatus(codes.Error, "write failed")
		return 0, fmt.Errorf("send form %d: %w", id, err)
	}
	g.log.DebugContext(ctx, "form.sent",
		slog.String("conn_id", conn.ID()),
		slog.Uint64("form_id", uint64(id)),
		slog.String("kind", string(f.Kind())),
	)
	return id, nil
}

// Abort closes the outstanding form of conn, if any, because something
// outside the form flow invalidated it (teleport, world change). It
// reports whether a form was open.
func (g *Guard) Abort(ctx context.Context, conn Conn, reason string) bool {
	sess, ok := g.store.Lookup(conn.ID())
	if !ok || !sess.HasForm() {
		return false
	}
	id, _ := sess.CurrentFormID()
	g.reset(ctx, conn, sess)
	g.log.InfoContext(ctx, "form.aborted",
		slog.String("conn_id", conn.ID()),
		slog.Uint64("form_id", uint64(id)),
		slog.String("reason", reason),
	)
	return true
}

// HandleMalformed handles a packet from conn whose payload could not be
// decoded. A form reply that cannot be read is a protocol violation: the
// session is reset and the policy applied. Other packets pass.
func (g *Guard) HandleMalformed(ctx context.Context, conn Conn, id protocol.ID, cause error) Verdict {
	if id != protocol.IDModalFormResponse || !conn.Connected() {
		return Pass
	}
	sess, ok := g.store.Lookup(conn.ID())
	if !ok {
		return Pass
	}
	ctx = withConn(ctx, conn)
	ctx = logctx.WithPacketData(ctx, &logctx.PacketData{PacketID: uint32(id), Name: id.String()})

	formID, open := sess.CurrentFormID()
	g.reset(ctx, conn, sess)
	v := reporter.New(reporter.KindMalformedResponse, conn.ID(), uint32(id),
		fmt.Errorf("%w: %v", protocol.ErrMalformedResponse, cause))
	v.FormID, v.HasForm = formID, open
	g.violation(ctx, conn, g.policy.Load(), v)
	return Cancel
}

// withConn attaches conn to ctx for logging unless the transport already
// did.
func withConn(ctx context.Context, conn Conn) context.Context {
	if _, ok := logctx.ConnDataFrom(ctx); ok {
		return ctx
	}
	return logctx.WithConnData(ctx, &logctx.ConnData{ConnID: conn.ID()})
}

// reset clears the session and the client's forms.
func (g *Guard) reset(ctx context.Context, conn Conn, sess *sessions.Session) {
	sess.ClearCurrentFormID()
	conn.ForgetPendingForms()
	if !conn.Connected() {
		return
	}
	if err := conn.CloseAllForms(ctx); err != nil {
		g.log.WarnContext(ctx, "form.close_all.failed", slog.String("conn_id", conn.ID()), slog.String("err", err.Error()))
	}
}

// violation reports v and applies the policy's action.
func (g *Guard) violation(ctx context.Context, conn Conn, pol *Policy, v reporter.Violation) {
	v.Disconnected = pol.Action == Disconnect
	g.report(ctx, v)
	if v.Disconnected {
		conn.Disconnect(pol.DisconnectMessage)
	}
}

func (g *Guard) report(ctx context.Context, v reporter.Violation) {
	if err := g.reporter.Report(ctx, v); err != nil {
		g.log.ErrorContext(ctx, "form.violation.report_failed",
			slog.String("violation_id", v.ID),
			slog.String("err", err.Error()),
		)
	}
}
