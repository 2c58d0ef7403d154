package guard

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/SwouitAzia/formshandler/reporter"
	"github.com/SwouitAzia/formshandler/sessions"
)

// Option customizes a Guard.
type Option func(*Guard)

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// WithReporter overrides where violations are reported. The default logs
// them.
func WithReporter(r reporter.Reporter) Option {
	return func(g *Guard) {
		if r != nil {
			g.reporter = r
		}
	}
}

// WithStore shares a session store with the guard.
func WithStore(s *sessions.Store) Option {
	return func(g *Guard) {
		if s != nil {
			g.store = s
		}
	}
}

// WithTracer overrides the tracer. The default comes from the global
// OpenTelemetry provider.
func WithTracer(t trace.Tracer) Option {
	return func(g *Guard) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithPolicy sets the initial policy.
func WithPolicy(p Policy) Option {
	return func(g *Guard) {
		g.setPolicy(p)
	}
}

// WithEnhancedUI selects whether visual pseudo-buttons carry the markers
// of the enhanced UI resource pack. Enabled by default.
func WithEnhancedUI(enabled bool) Option {
	return func(g *Guard) {
		g.encode.PlainVisuals = !enabled
	}
}
