package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/SwouitAzia/formshandler/config"
	"github.com/SwouitAzia/formshandler/element"
	"github.com/SwouitAzia/formshandler/form"
	"github.com/SwouitAzia/formshandler/internal/logctx"
	"github.com/SwouitAzia/formshandler/protocol"
	"github.com/SwouitAzia/formshandler/reporter"
)

type recorder struct {
	mu         sync.Mutex
	violations []reporter.Violation
}

func (r *recorder) Report(_ context.Context, v reporter.Violation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, v)
	return nil
}

func (r *recorder) kinds() []reporter.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]reporter.Kind, len(r.violations))
	for i, v := range r.violations {
		out[i] = v.Kind
	}
	return out
}

func newTestGuard(opts ...Option) (*Guard, *recorder) {
	rec := &recorder{}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithReporter(rec),
	}
	return New(append(base, opts...)...), rec
}

func connect(g *Guard, id string) *fakeConn {
	c := newFakeConn(id)
	g.Connected(c)
	return c
}

func currentForm(t *testing.T, g *Guard, c *fakeConn) (uint32, bool) {
	t.Helper()
	sess, ok := g.Store().Lookup(c.ID())
	if !ok {
		t.Fatalf("no session for %s", c.ID())
	}
	return sess.CurrentFormID()
}

func TestSendForm_TracksCurrentForm(t *testing.T) {
	g, _ := newTestGuard()
	c := connect(g, "c1")

	f := form.NewModalForm("Confirm").SetButtons("Yes", "No")
	id, err := g.SendForm(context.Background(), c, f)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if cur, ok := currentForm(t, g, c); !ok || cur != id {
		t.Fatalf("expected current form %d, got %d %v", id, cur, ok)
	}
	if got, ok := c.PendingForm(id); !ok || got != f {
		t.Fatalf("form not registered as pending")
	}
	if len(c.written) != 1 {
		t.Fatalf("expected one packet, got %d", len(c.written))
	}
	req, ok := c.written[0].(*protocol.ModalFormRequest)
	if !ok || req.FormID != id {
		t.Fatalf("unexpected packet %#v", c.written[0])
	}
	var desc map[string]any
	if err := json.Unmarshal(req.FormData, &desc); err != nil || desc["type"] != "modal" {
		t.Fatalf("unexpected description %s (%v)", req.FormData, err)
	}
	if f.State() != form.StateSent {
		t.Fatalf("form must be sealed by SendForm")
	}
	if c.closeAll != 0 {
		t.Fatalf("nothing to close on first send")
	}
}

func TestSendForm_SecondSendWins(t *testing.T) {
	g, rec := newTestGuard()
	c := connect(g, "c1")
	var calls []string

	first := form.NewSimpleForm("First").AddButton(element.Button{Text: "a"}).
		OnSubmit(func(context.Context, form.Conn, form.Choice) { calls = append(calls, "first") })
	second := form.NewSimpleForm("Second").AddButton(element.Button{Text: "b"}).
		OnSubmit(func(context.Context, form.Conn, form.Choice) { calls = append(calls, "second") })

	id1, _ := g.SendForm(context.Background(), c, first)
	id2, _ := g.SendForm(context.Background(), c, second)
	if cur, _ := currentForm(t, g, c); cur != id2 {
		t.Fatalf("expected current form %d, got %d", id2, cur)
	}
	if c.closeAll != 1 {
		t.Fatalf("expected client forms to be closed once, got %d", c.closeAll)
	}
	if _, ok := c.PendingForm(id1); ok {
		t.Fatalf("first form must be forgotten")
	}
	if c.pendingCount() != 1 {
		t.Fatalf("pending registry must hold only the latest form, has %d", c.pendingCount())
	}

	verdict := g.HandleInbound(context.Background(), c, protocol.Answered(id1, "0"))
	if verdict != Cancel {
		t.Fatalf("replies are always consumed")
	}
	if len(calls) != 0 {
		t.Fatalf("late reply delivered: %v", calls)
	}
	if !reflect.DeepEqual(rec.kinds(), []reporter.Kind{reporter.KindFormMismatch}) {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
}

func TestHandleInbound_MatchingReply(t *testing.T) {
	g, rec := newTestGuard()
	c := connect(g, "c1")
	var got []any
	f := form.NewCustomForm("Settings").
		AddElement(element.Toggle{Text: "t"}).
		AddElement(element.Dropdown{Text: "d", Options: []string{"a", "b"}, Default: element.Int(0)}).
		OnSubmit(func(_ context.Context, conn form.Conn, r *form.Result) {
			if conn.ID() != "c1" {
				t.Errorf("callback got conn %s", conn.ID())
			}
			got = r.Values()
		})
	id, err := g.SendForm(context.Background(), c, f)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if v := g.HandleInbound(context.Background(), c, protocol.Answered(id, "[true, 5]")); v != Cancel {
		t.Fatalf("expected reply to be cancelled, got %s", v)
	}
	if !reflect.DeepEqual(got, []any{true, 0}) {
		t.Fatalf("got %#v want [true 0]", got)
	}
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("session must be cleared after a reply")
	}
	if len(rec.kinds()) != 0 {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
}

func TestHandleInbound_CancelledReply(t *testing.T) {
	g, _ := newTestGuard()
	c := connect(g, "c1")
	closed := false
	f := form.NewModalForm("Confirm").SetButtons("Yes", "No").
		OnClose(func(context.Context, form.Conn) { closed = true })
	id, _ := g.SendForm(context.Background(), c, f)

	g.HandleInbound(context.Background(), c, protocol.Cancelled(id, protocol.CancelUserClosed))
	if !closed {
		t.Fatalf("close callback not invoked")
	}
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("session must be cleared after close")
	}
}

func TestHandleInbound_Mismatch(t *testing.T) {
	for _, action := range []Action{Warn, Disconnect} {
		t.Run(action.String(), func(t *testing.T) {
			pol := DefaultPolicy()
			pol.Action = action
			pol.DisconnectMessage = "bye"
			g, rec := newTestGuard(WithPolicy(pol))
			c := connect(g, "c1")
			called := false
			f := form.NewModalForm("Confirm").SetButtons("Yes", "No").
				OnSubmit(func(context.Context, form.Conn, bool) { called = true })
			id, _ := g.SendForm(context.Background(), c, f)

			g.HandleInbound(context.Background(), c, protocol.Answered(id+1, "true"))
			if called {
				t.Fatalf("callback invoked for mismatched reply")
			}
			if _, ok := currentForm(t, g, c); ok {
				t.Fatalf("session must be cleared after a mismatch")
			}
			if c.pendingCount() != 0 {
				t.Fatalf("pending forms must be forgotten")
			}
			if len(rec.violations) != 1 || rec.violations[0].Kind != reporter.KindFormMismatch {
				t.Fatalf("expected one mismatch violation, got %+v", rec.violations)
			}
			v := rec.violations[0]
			if !v.HasForm || v.FormID != id {
				t.Fatalf("violation must name the outstanding form: %+v", v)
			}
			if wantDisc := action == Disconnect; v.Disconnected != wantDisc || (c.disconnected == "bye") != wantDisc {
				t.Fatalf("disconnect mismatch: violation=%v conn=%q", v.Disconnected, c.disconnected)
			}
		})
	}
}

func TestHandleInbound_UnauthorizedPacket(t *testing.T) {
	g, rec := newTestGuard()
	c := connect(g, "c1")
	id, _ := g.SendForm(context.Background(), c, form.NewModalForm("x").SetButtons("a", "b"))

	allowed := &protocol.Raw{PacketID: protocol.IDNetworkStackLatency}
	if v := g.HandleInbound(context.Background(), c, allowed); v != Pass {
		t.Fatalf("keep-alive must pass, got %s", v)
	}
	if cur, ok := currentForm(t, g, c); !ok || cur != id {
		t.Fatalf("allowed packet must not clear the session")
	}

	move := &protocol.Raw{PacketID: protocol.IDMovePlayer}
	if v := g.HandleInbound(context.Background(), c, move); v != Cancel {
		t.Fatalf("movement must be cancelled, got %s", v)
	}
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("session must be cleared")
	}
	if !reflect.DeepEqual(rec.kinds(), []reporter.Kind{reporter.KindUnauthorizedPacket}) {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
	if rec.violations[0].PacketID != uint32(protocol.IDMovePlayer) || rec.violations[0].FormID != id {
		t.Fatalf("unexpected violation %+v", rec.violations[0])
	}
	if c.disconnected != "" {
		t.Fatalf("warn policy must keep the connection")
	}

	// With no form open the same packet is ordinary traffic.
	if v := g.HandleInbound(context.Background(), c, move); v != Pass {
		t.Fatalf("movement without a form must pass, got %s", v)
	}
}

func TestHandleInbound_DenyList(t *testing.T) {
	pol := DefaultPolicy()
	pol.Filter = DenyList(DefaultDenied...)
	g, rec := newTestGuard(WithPolicy(pol))
	c := connect(g, "c1")
	g.SendForm(context.Background(), c, form.NewModalForm("x").SetButtons("a", "b"))

	if v := g.HandleInbound(context.Background(), c, &protocol.Raw{PacketID: protocol.IDPlayerAuthInput}); v != Pass {
		t.Fatalf("movement is not denied by the deny list")
	}
	if v := g.HandleInbound(context.Background(), c, &protocol.Raw{PacketID: protocol.IDCommandRequest}); v != Cancel {
		t.Fatalf("commands are denied while a form is open")
	}
	if len(rec.kinds()) != 1 {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
}

func TestHandleInbound_IgnoredWithoutSession(t *testing.T) {
	g, rec := newTestGuard()
	c := newFakeConn("stranger")
	if v := g.HandleInbound(context.Background(), c, protocol.Answered(0, "true")); v != Pass {
		t.Fatalf("reply without a session must be ignored, got %s", v)
	}
	d := connect(g, "gone")
	d.Disconnect("left")
	if v := g.HandleInbound(context.Background(), d, protocol.Answered(0, "true")); v != Pass {
		t.Fatalf("reply on a closed connection must be ignored, got %s", v)
	}
	if len(rec.kinds()) != 0 {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
}

func TestHandleInbound_FailuresStillClear(t *testing.T) {
	tests := []struct {
		name  string
		reply *protocol.ModalFormResponse
		form  func() form.Form
		kind  reporter.Kind
	}{
		{
			name:  "validation failure",
			reply: protocol.Answered(0, "1"),
			form: func() form.Form {
				return form.NewSimpleForm("x").AddButton(element.Button{Text: "a"}).AddDivider()
			},
			kind: reporter.KindInvalidResponse,
		},
		{
			name:  "malformed payload",
			reply: protocol.Answered(0, "[[[1]]]"),
			form:  func() form.Form { return form.NewModalForm("x") },
			kind:  reporter.KindMalformedResponse,
		},
		{
			name:  "neither data nor cancel",
			reply: &protocol.ModalFormResponse{FormID: 0},
			form:  func() form.Form { return form.NewModalForm("x") },
			kind:  reporter.KindMalformedResponse,
		},
		{
			name:  "callback panic",
			reply: protocol.Answered(0, "true"),
			form: func() form.Form {
				return form.NewModalForm("x").OnSubmit(func(context.Context, form.Conn, bool) { panic("boom") })
			},
			kind: reporter.KindCallbackPanic,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, rec := newTestGuard()
			c := connect(g, "c1")
			if _, err := g.SendForm(context.Background(), c, tt.form()); err != nil {
				t.Fatalf("send: %v", err)
			}
			if v := g.HandleInbound(context.Background(), c, tt.reply); v != Cancel {
				t.Fatalf("expected cancel, got %s", v)
			}
			if _, ok := currentForm(t, g, c); ok {
				t.Fatalf("session must be cleared on every exit path")
			}
			if !reflect.DeepEqual(rec.kinds(), []reporter.Kind{tt.kind}) {
				t.Fatalf("got violations %v want %s", rec.kinds(), tt.kind)
			}
		})
	}
}

func TestHandleInbound_UnknownForm(t *testing.T) {
	g, rec := newTestGuard()
	c := connect(g, "c1")
	id, _ := g.SendForm(context.Background(), c, form.NewModalForm("x"))
	c.ForgetPendingForms()

	g.HandleInbound(context.Background(), c, protocol.Answered(id, "true"))
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("session must be cleared")
	}
	if !reflect.DeepEqual(rec.kinds(), []reporter.Kind{reporter.KindUnknownForm}) {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
}

func TestHandleInbound_CallbackSendsFollowUp(t *testing.T) {
	g, _ := newTestGuard()
	c := connect(g, "c1")
	next := form.NewModalForm("next").SetButtons("a", "b")
	var nextID uint32
	menu := form.NewSimpleForm("menu").AddButton(element.Button{Text: "go"}).
		OnSubmit(func(ctx context.Context, _ form.Conn, _ form.Choice) {
			var err error
			if nextID, err = g.SendForm(ctx, c, next); err != nil {
				t.Errorf("follow-up send: %v", err)
			}
		})
	id, _ := g.SendForm(context.Background(), c, menu)

	g.HandleInbound(context.Background(), c, protocol.Answered(id, "0"))
	if cur, ok := currentForm(t, g, c); !ok || cur != nextID {
		t.Fatalf("follow-up form must stay current, got %d %v", cur, ok)
	}
	if _, ok := c.PendingForm(nextID); !ok {
		t.Fatalf("follow-up form must stay registered")
	}
}

func TestHandleOutboundBatch(t *testing.T) {
	g, _ := newTestGuard()
	a, b := connect(g, "a"), connect(g, "b")
	pk := &protocol.ModalFormRequest{FormID: 4}

	g.HandleOutboundBatch(context.Background(), []Conn{a, b}, []protocol.Packet{pk})
	if _, ok := currentForm(t, g, a); ok {
		t.Fatalf("broadcast must be ignored")
	}
	g.HandleOutboundBatch(context.Background(), []Conn{a}, []protocol.Packet{pk, pk})
	if _, ok := currentForm(t, g, a); ok {
		t.Fatalf("multi-packet batch must be ignored")
	}
	g.HandleOutboundBatch(context.Background(), []Conn{a}, []protocol.Packet{pk})
	if cur, ok := currentForm(t, g, a); !ok || cur != 4 {
		t.Fatalf("single send must be tracked, got %d %v", cur, ok)
	}
	g.HandleOutbound(context.Background(), a, &protocol.ClientboundCloseForm{})
	if cur, _ := currentForm(t, g, a); cur != 4 {
		t.Fatalf("non-request packets must not change the session")
	}
}

func TestSendForm_Errors(t *testing.T) {
	g, _ := newTestGuard()
	c := connect(g, "c1")

	bad := form.NewCustomForm("x").AddElement(element.Dropdown{Text: "d", Default: element.Int(1)})
	if _, err := g.SendForm(context.Background(), c, bad); err == nil {
		t.Fatalf("expected invalid form to be rejected")
	}

	f := form.NewModalForm("x")
	if _, err := g.SendForm(context.Background(), c, f); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := g.SendForm(context.Background(), c, f); !errors.Is(err, form.ErrSealed) {
		t.Fatalf("resending a form must fail with ErrSealed, got %v", err)
	}

	broken := connect(g, "broken")
	broken.writeErr = errors.New("pipe")
	if _, err := g.SendForm(context.Background(), broken, form.NewModalForm("x")); err == nil {
		t.Fatalf("expected write error")
	}
	if _, ok := currentForm(t, g, broken); ok {
		t.Fatalf("failed write must not leave a form outstanding")
	}

	broken.Disconnect("gone")
	if _, err := g.SendForm(context.Background(), broken, form.NewModalForm("x")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestSendForm_PlainVisuals(t *testing.T) {
	g, _ := newTestGuard(WithEnhancedUI(false))
	c := connect(g, "c1")
	g.SendForm(context.Background(), c, form.NewSimpleForm("x").AddHeader("H"))
	req := c.written[0].(*protocol.ModalFormRequest)
	if string(req.FormData) != `{"type":"form","title":"x","content":"","buttons":[{"text":"H"}]}` {
		t.Fatalf("unexpected description %s", req.FormData)
	}
}

func TestAbortAndDisconnect(t *testing.T) {
	g, _ := newTestGuard()
	c := connect(g, "c1")
	if g.Abort(context.Background(), c, "teleport") {
		t.Fatalf("nothing to abort")
	}
	g.SendForm(context.Background(), c, form.NewModalForm("x"))
	if !g.Abort(context.Background(), c, "teleport") {
		t.Fatalf("expected the open form to be aborted")
	}
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("abort must clear the session")
	}
	if c.closeAll != 1 || c.pendingCount() != 0 {
		t.Fatalf("abort must close client forms and forget pending ones")
	}

	g.Disconnected(c)
	if _, ok := g.Store().Lookup("c1"); ok {
		t.Fatalf("disconnect must drop the session")
	}
}

func TestSetPolicy(t *testing.T) {
	g, _ := newTestGuard()
	if g.Policy().Action != Warn || g.Policy().Filter.IsDenyList() {
		t.Fatalf("unexpected default policy %+v", g.Policy())
	}

	cfg := config.Default()
	cfg.Violation.Policy = config.ActionDisconnect
	cfg.Filter.Mode = config.FilterDeny
	g.SetPolicy(PolicyFromConfig(cfg))

	p := g.Policy()
	if p.Action != Disconnect || !p.Filter.IsDenyList() {
		t.Fatalf("policy not applied: %+v", p)
	}
	if !reflect.DeepEqual(p.Filter.IDs(), []protocol.ID{9, 30, 50, 77, 147}) {
		t.Fatalf("unexpected deny list %v", p.Filter.IDs())
	}

	cfg.Filter = config.Filter{Mode: config.FilterAllow, Packets: []uint32{115}}
	g.SetPolicy(PolicyFromConfig(cfg))
	if f := g.Policy().Filter; !f.Permits(protocol.IDNetworkStackLatency) || f.Permits(protocol.IDDisconnect) {
		t.Fatalf("custom allow list not applied")
	}
}

func TestFilter_AlwaysPermitsReplies(t *testing.T) {
	for _, f := range []*Filter{AllowList(), DenyList(protocol.IDModalFormResponse)} {
		if !f.Permits(protocol.IDModalFormResponse) {
			t.Fatalf("form replies must never be filtered")
		}
	}
}

func TestHandleMalformed(t *testing.T) {
	for _, action := range []Action{Warn, Disconnect} {
		t.Run(action.String(), func(t *testing.T) {
			pol := DefaultPolicy()
			pol.Action = action
			pol.DisconnectMessage = "bad reply"
			g, rec := newTestGuard(WithPolicy(pol))
			c := connect(g, "c1")
			id, _ := g.SendForm(context.Background(), c, form.NewModalForm("x"))

			cause := errors.New("formData: cannot unmarshal number")
			if v := g.HandleMalformed(context.Background(), c, protocol.IDModalFormResponse, cause); v != Cancel {
				t.Fatalf("expected cancel, got %s", v)
			}
			if _, ok := currentForm(t, g, c); ok {
				t.Fatalf("session must be cleared")
			}
			if c.pendingCount() != 0 || c.closeAll == 0 {
				t.Fatalf("client forms must be reset: pending=%d closeAll=%d", c.pendingCount(), c.closeAll)
			}
			if len(rec.violations) != 1 {
				t.Fatalf("expected one violation, got %+v", rec.violations)
			}
			v := rec.violations[0]
			if v.Kind != reporter.KindMalformedResponse || v.FormID != id || !v.HasForm {
				t.Fatalf("unexpected violation %+v", v)
			}
			if !strings.Contains(v.Detail, "cannot unmarshal") {
				t.Fatalf("violation must carry the decode error: %q", v.Detail)
			}
			if wantDisc := action == Disconnect; v.Disconnected != wantDisc || (c.disconnected == "bad reply") != wantDisc {
				t.Fatalf("disconnect mismatch: violation=%v conn=%q", v.Disconnected, c.disconnected)
			}
		})
	}

	t.Run("other packets pass", func(t *testing.T) {
		g, rec := newTestGuard()
		c := connect(g, "c1")
		g.SendForm(context.Background(), c, form.NewModalForm("x"))
		if v := g.HandleMalformed(context.Background(), c, protocol.IDModalFormRequest, errors.New("x")); v != Pass {
			t.Fatalf("expected pass, got %s", v)
		}
		if _, ok := currentForm(t, g, c); !ok || len(rec.violations) != 0 {
			t.Fatalf("only form replies are policed")
		}
	})

	t.Run("no session", func(t *testing.T) {
		g, rec := newTestGuard()
		if v := g.HandleMalformed(context.Background(), newFakeConn("ghost"), protocol.IDModalFormResponse, errors.New("x")); v != Pass {
			t.Fatalf("expected pass, got %s", v)
		}
		if len(rec.violations) != 0 {
			t.Fatalf("unexpected violations %+v", rec.violations)
		}
	})
}

func TestHandleInbound_ReplyToResolvedForm(t *testing.T) {
	g, rec := newTestGuard()
	c := connect(g, "c1")
	first := form.NewModalForm("x")
	id, _ := g.SendForm(context.Background(), c, first)
	g.HandleInbound(context.Background(), c, protocol.Answered(id, "true"))

	next, _ := g.SendForm(context.Background(), c, form.NewModalForm("y"))
	c.RegisterPendingForm(next, first)
	g.HandleInbound(context.Background(), c, protocol.Answered(next, "true"))

	if !reflect.DeepEqual(rec.kinds(), []reporter.Kind{reporter.KindFormState}) {
		t.Fatalf("unexpected violations %v", rec.kinds())
	}
	if _, ok := currentForm(t, g, c); ok {
		t.Fatalf("session must be cleared")
	}
}

func TestHandleInbound_KeepsTransportConnData(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(logctx.Handler{Handler: slog.NewJSONHandler(&buf, nil)})
	g := New(WithLogger(log), WithReporter(reporter.NewLogger(log)))
	c := connect(g, "c1")
	g.SendForm(context.Background(), c, form.NewModalForm("x"))

	ctx := logctx.WithConnData(context.Background(), &logctx.ConnData{ConnID: "c1", RemoteAddr: "10.0.0.1:4000"})
	g.HandleInbound(ctx, c, &protocol.Raw{PacketID: protocol.IDMovePlayer})

	out := buf.String()
	if !strings.Contains(out, `"form.violation"`) || !strings.Contains(out, `"remote_addr":"10.0.0.1:4000"`) {
		t.Fatalf("violation log lost the transport's connection data: %s", out)
	}
}
