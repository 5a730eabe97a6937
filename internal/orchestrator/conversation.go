package orchestrator

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/logging"
	"github.com/fyrsmithlabs/memscope/internal/scope"
)

// ConversationOptions configures a long-lived memory session.
type ConversationOptions struct {
	Backend   string
	Model     string
	EntityID  string
	ProcessID string
}

// Conversation is one scope reused across many turns. The barrier runs
// once, on Close.
type Conversation struct {
	o      *Orchestrator
	sc     *scope.Scope
	ctx    context.Context
	closed sync.Once
	err    error
}

// OpenConversation builds a handle and opens a scope for the configured
// entity and process. Errors are *Failure.
func (o *Orchestrator) OpenConversation(ctx context.Context, opts ConversationOptions) (*Conversation, error) {
	if opts.Backend == "" {
		opts.Backend = o.defaultBackend
	}
	handle, err := o.gateway.New(opts.Backend, opts.Model)
	if err != nil {
		return nil, asFailure(err)
	}

	attr := scope.Attribution{EntityID: opts.EntityID, ProcessID: opts.ProcessID}
	ctx = logging.WithAttribution(ctx, attr.EntityID, attr.ProcessID)
	sc, err := scope.Open(ctx, handle, o.engines, o.conns, attr,
		scope.WithBarrierTimeout(o.barrierTimeout),
		scope.WithLogger(o.logger.Underlying()),
	)
	if err != nil {
		return nil, asFailure(err)
	}

	o.logger.Info(ctx, "conversation opened",
		zap.String("backend", string(handle.Backend())),
		zap.String("model", handle.Model()),
	)
	return &Conversation{o: o, sc: sc, ctx: ctx}, nil
}

// Attribution returns the conversation's entity and process.
func (c *Conversation) Attribution() scope.Attribution { return c.sc.Attribution() }

// Backend returns the resolved backend name.
func (c *Conversation) Backend() string { return string(c.sc.Handle().Backend()) }

// Model returns the resolved model.
func (c *Conversation) Model() string { return c.sc.Handle().Model() }

// Turn sends one message. Errors are *Failure; the conversation stays
// usable after a failed turn.
func (c *Conversation) Turn(ctx context.Context, text string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply, err = "", panicFailure(r)
		}
		if err != nil {
			f := asFailure(err)
			turnsTotal.WithLabelValues(modeMemory, string(f.Kind)).Inc()
			err = f
			return
		}
		turnsTotal.WithLabelValues(modeMemory, "ok").Inc()
	}()

	if strings.TrimSpace(text) == "" {
		return "", &InvalidInputError{Reason: "Message cannot be empty"}
	}
	return c.sc.Turn(ctx, text)
}

// Close runs the augmentation barrier and releases the scope. A barrier
// timeout is returned as a *scope.AugmentationTimeoutWarning. Safe to call
// more than once.
func (c *Conversation) Close(ctx context.Context) error {
	c.closed.Do(func() {
		c.err = c.sc.CloseAndWait(ctx)
		if c.err != nil && !scope.IsTimeoutWarning(c.err) {
			c.o.logger.Error(c.ctx, "conversation close failed", zap.Error(c.err))
			return
		}
		c.o.logger.Info(c.ctx, "conversation closed")
	})
	return c.err
}
