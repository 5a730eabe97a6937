// Package scope binds a provider handle to an entity attribution and a
// memory engine for the length of one turn (web) or one process (CLI), and
// owns the augmentation barrier.
//
// A scope moves through unopened, open, draining and closed. Turns are only
// accepted while open. CloseAndWait moves to draining, waits for turns in
// progress and for every augmentation job issued so far, then releases the
// engine and moves to closed.
package scope

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/memory"
	"github.com/fyrsmithlabs/memscope/internal/provider"
)

// State is a scope's lifecycle position.
type State int32

const (
	StateUnopened State = iota
	StateOpen
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Engine is the memory engine a scope drives.
type Engine interface {
	Register(h provider.Handle) error
	Attribution(entityID, processID string) error
	EnsureSchema(ctx context.Context) error
	// Generate is the intercepted model call.
	Generate(ctx context.Context, prompt string) (string, error)
	// AugmentAndWait returns once every job issued before the call has
	// committed.
	AugmentAndWait(ctx context.Context) error
	Close() error
}

// EngineFactory builds an engine over a connection factory.
type EngineFactory func(conns memory.ConnFactory) (Engine, error)

// Attribution identifies whose memories a scope reads and writes.
type Attribution struct {
	EntityID  string
	ProcessID string
}

// Validate checks that both ids are set.
func (a Attribution) Validate() error {
	if strings.TrimSpace(a.EntityID) == "" {
		return errors.New("entity id is required")
	}
	if strings.TrimSpace(a.ProcessID) == "" {
		return errors.New("process id is required")
	}
	return nil
}

type options struct {
	barrierTimeout time.Duration
	logger         *zap.Logger
}

// Option configures Open.
type Option func(*options)

// WithBarrierTimeout bounds CloseAndWait. Zero waits indefinitely.
func WithBarrierTimeout(d time.Duration) Option {
	return func(o *options) { o.barrierTimeout = d }
}

// WithLogger sets the scope's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// Scope is the bound lifetime of one handle, attribution and engine.
type Scope struct {
	handle provider.Handle
	attr   Attribution
	engine Engine
	opts   options
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	turns    sync.WaitGroup
	drained  chan struct{}
	drainErr error
}

// Open builds an engine over conns, registers handle with it, sets the
// attribution and ensures the schema. Registration happens once per scope.
func Open(ctx context.Context, handle provider.Handle, newEngine EngineFactory, conns memory.ConnFactory, attr Attribution, opts ...Option) (*Scope, error) {
	if handle == nil {
		return nil, errors.New("scope: provider handle is required")
	}
	if newEngine == nil || conns == nil {
		return nil, errors.New("scope: engine and connection factories are required")
	}
	if err := attr.Validate(); err != nil {
		return nil, fmt.Errorf("scope: %w", err)
	}

	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Scope{
		handle: handle,
		attr:   attr,
		opts:   o,
		state:  StateUnopened,
		logger: o.logger.With(
			zap.String("entity_id", attr.EntityID),
			zap.String("process_id", attr.ProcessID),
			zap.String("backend", string(handle.Backend())),
		),
	}

	engine, err := newEngine(conns)
	if err != nil {
		return nil, fmt.Errorf("creating memory engine: %w", err)
	}
	if err := s.register(ctx, engine); err != nil {
		_ = engine.Close()
		return nil, err
	}

	s.engine = engine
	s.state = StateOpen
	s.logger.Debug("scope opened")
	return s, nil
}

func (s *Scope) register(ctx context.Context, e Engine) error {
	if err := e.Register(s.handle); err != nil {
		return fmt.Errorf("registering provider: %w", err)
	}
	if err := e.Attribution(s.attr.EntityID, s.attr.ProcessID); err != nil {
		return fmt.Errorf("setting attribution: %w", err)
	}
	if err := e.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("building memory schema: %w", err)
	}
	return nil
}

// State returns the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attribution returns the scope's entity and process.
func (s *Scope) Attribution() Attribution { return s.attr }

// Handle returns the registered provider handle.
func (s *Scope) Handle() provider.Handle { return s.handle }

// Turn sends prompt through the engine. It fails with ErrScopeClosed once
// CloseAndWait has started.
func (s *Scope) Turn(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return "", ErrScopeClosed
	}
	s.turns.Add(1)
	s.mu.Unlock()
	defer s.turns.Done()

	return s.engine.Generate(ctx, prompt)
}

// CloseAndWait stops accepting turns and blocks until every augmentation
// job issued so far has committed. Calling it again once closed returns
// immediately; a concurrent call waits for the same drain.
//
// With WithBarrierTimeout, expiry returns an *AugmentationTimeoutWarning
// and the drain finishes in the background.
func (s *Scope) CloseAndWait(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateUnopened:
		// Nothing was ever issued.
		s.state = StateClosed
		s.mu.Unlock()
		return nil
	case StateClosed:
		err := s.drainErr
		s.mu.Unlock()
		return err
	case StateOpen:
		s.state = StateDraining
		s.drained = make(chan struct{})
		go s.drain()
	}
	drained := s.drained
	s.mu.Unlock()

	var expired <-chan time.Time
	if s.opts.barrierTimeout > 0 {
		timer := time.NewTimer(s.opts.barrierTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-drained:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.drainErr
	case <-expired:
		w := &AugmentationTimeoutWarning{
			Timeout:   s.opts.barrierTimeout,
			EntityID:  s.attr.EntityID,
			ProcessID: s.attr.ProcessID,
		}
		s.logger.Warn("augmentation barrier timed out", zap.Duration("timeout", s.opts.barrierTimeout))
		return w
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain runs to completion regardless of any caller's context.
func (s *Scope) drain() {
	start := time.Now()
	s.turns.Wait()

	err := s.engine.AugmentAndWait(context.Background())
	if cerr := s.engine.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("closing memory engine: %w", cerr))
	}

	s.mu.Lock()
	s.state = StateClosed
	s.drainErr = err
	s.mu.Unlock()
	close(s.drained)

	if err != nil {
		s.logger.Error("scope drain failed", zap.Error(err))
		return
	}
	s.logger.Debug("scope closed", zap.Duration("drain", time.Since(start)))
}

// MemoryEngines returns an EngineFactory that builds the bundled memory
// engine with opts.
func MemoryEngines(opts memory.Options) EngineFactory {
	return func(conns memory.ConnFactory) (Engine, error) {
		return memory.NewEngine(conns, opts)
	}
}
