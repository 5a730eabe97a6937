package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/identity"
	"github.com/fyrsmithlabs/memscope/internal/logging"
	"github.com/fyrsmithlabs/memscope/internal/memory"
	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/scope"
)

const (
	modeMemory = "memory"
	modeBare   = "bare"

	// DefaultWebProcessID attributes memories written by web turns.
	DefaultWebProcessID = "web-demo"
)

// Request is one turn.
type Request struct {
	Text      string
	UseMemory bool
	// Backend names the provider; empty means the orchestrator default.
	Backend string
	// Model overrides the backend's configured model when non-empty.
	Model   string
	Carrier identity.Carrier
}

// Result is a completed turn.
type Result struct {
	Text      string   `json:"response"`
	SessionID string   `json:"session_id"`
	Backend   string   `json:"backend"`
	Model     string   `json:"model"`
	UseMemory bool     `json:"use_memory"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Orchestrator coordinates identity, providers and memory scopes.
type Orchestrator struct {
	gateway *provider.Gateway
	engines scope.EngineFactory
	conns   memory.ConnFactory
	binder  *identity.Binder

	webProcessID   string
	defaultBackend string
	barrierTimeout time.Duration

	logger *logging.Logger
	tracer trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer sets the tracer used for turn spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithBinder replaces the session id binder.
func WithBinder(b *identity.Binder) Option {
	return func(o *Orchestrator) {
		if b != nil {
			o.binder = b
		}
	}
}

// WithWebProcessID sets the process id for memory turns.
func WithWebProcessID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.webProcessID = id
		}
	}
}

// WithDefaultBackend sets the backend used when a request names none.
func WithDefaultBackend(b string) Option {
	return func(o *Orchestrator) {
		if b != "" {
			o.defaultBackend = b
		}
	}
}

// WithBarrierTimeout bounds the per-turn augmentation barrier.
func WithBarrierTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.barrierTimeout = d }
}

// New creates an Orchestrator. engines and conns are only used by memory
// turns.
func New(gateway *provider.Gateway, engines scope.EngineFactory, conns memory.ConnFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gateway:        gateway,
		engines:        engines,
		conns:          conns,
		binder:         identity.NewBinder(),
		webProcessID:   DefaultWebProcessID,
		defaultBackend: string(provider.BackendOpenAI),
		logger:         logging.NewNop(),
		tracer:         otel.Tracer("memscope.orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Binder returns the binder used to resolve session ids.
func (o *Orchestrator) Binder() *identity.Binder { return o.binder }

// HandleTurn runs one turn. A non-nil error is always a *Failure.
func (o *Orchestrator) HandleTurn(ctx context.Context, req Request) (res *Result, err error) {
	mode := modeBare
	if req.UseMemory {
		mode = modeMemory
	}
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.HandleTurn", trace.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("backend", req.Backend),
	))

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(ctx, "turn panicked", zap.Any("panic", r), zap.Stack("stack"))
			res, err = nil, panicFailure(r)
		}

		outcome := "ok"
		if err != nil {
			f := asFailure(err)
			err = f
			outcome = string(f.Kind)
			span.RecordError(f)
			span.SetStatus(codes.Error, f.Message)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		span.End()
		turnsTotal.WithLabelValues(mode, outcome).Inc()
		turnDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(req.Text) == "" {
		return nil, &InvalidInputError{Reason: "Message cannot be empty"}
	}
	if req.Carrier == nil {
		req.Carrier = identity.NewMemoryCarrier("")
	}
	if req.Backend == "" {
		req.Backend = o.defaultBackend
	}

	sessionID := o.binder.GetOrCreate(req.Carrier)
	span.SetAttributes(attribute.String("session.id", sessionID))
	if uuid.Validate(sessionID) == nil {
		ctx = logging.WithSessionID(ctx, sessionID)
	}

	if req.UseMemory {
		return o.memoryTurn(ctx, req, sessionID)
	}
	return o.bareTurn(ctx, req, sessionID)
}

// memoryTurn opens a scope for the session's entity, dispatches and always
// waits on the barrier, even when the model call failed or panicked.
func (o *Orchestrator) memoryTurn(ctx context.Context, req Request, sessionID string) (res *Result, err error) {
	handle, err := o.gateway.New(req.Backend, req.Model)
	if err != nil {
		return nil, err
	}

	attr := scope.Attribution{EntityID: sessionID, ProcessID: o.webProcessID}
	ctx = logging.WithAttribution(ctx, attr.EntityID, attr.ProcessID)

	sc, err := scope.Open(ctx, handle, o.engines, o.conns, attr,
		scope.WithBarrierTimeout(o.barrierTimeout),
		scope.WithLogger(o.logger.Underlying()),
	)
	if err != nil {
		return nil, err
	}
	defer func() {
		warnings, closeErr := o.closeScope(ctx, sc)
		switch {
		case err != nil, res == nil:
			// The turn error (or a panic in flight) wins over the barrier.
		case closeErr != nil:
			res, err = nil, closeErr
		default:
			res.Warnings = warnings
		}
	}()

	text, err := sc.Turn(ctx, req.Text)
	if err != nil {
		return nil, err
	}

	o.logger.Debug(ctx, "memory turn complete",
		zap.String("backend", string(handle.Backend())),
		zap.String("model", handle.Model()),
	)
	return &Result{
		Text:      text,
		SessionID: sessionID,
		Backend:   string(handle.Backend()),
		Model:     handle.Model(),
		UseMemory: true,
	}, nil
}

// closeScope runs the barrier. A timeout becomes a warning; any other
// error is returned.
func (o *Orchestrator) closeScope(ctx context.Context, sc *scope.Scope) ([]string, error) {
	err := sc.CloseAndWait(ctx)
	if err == nil {
		return nil, nil
	}
	if scope.IsTimeoutWarning(err) {
		barrierWarnings.Inc()
		o.logger.Warn(ctx, "returning before augmentation finished", zap.Error(err))
		return []string{err.Error()}, nil
	}
	o.logger.Error(ctx, "augmentation barrier failed", zap.Error(err))
	return nil, err
}

// bareTurn calls the provider directly. No scope, attribution or barrier.
func (o *Orchestrator) bareTurn(ctx context.Context, req Request, sessionID string) (*Result, error) {
	handle, err := o.gateway.New(req.Backend, req.Model)
	if err != nil {
		return nil, err
	}
	text, err := handle.Generate(ctx, req.Text)
	if err != nil {
		return nil, err
	}
	return &Result{
		Text:      text,
		SessionID: sessionID,
		Backend:   string(handle.Backend()),
		Model:     handle.Model(),
	}, nil
}

// Reset clears the carrier's session. Stored memories are kept.
func (o *Orchestrator) Reset(ctx context.Context, c identity.Carrier) {
	o.binder.Reset(c)
	o.logger.Debug(ctx, "session reset")
}
