package orchestrator

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/memscope/internal/identity"
)

// Branch is the outcome of one side of a comparison.
type Branch struct {
	Result *Result  `json:"result,omitempty"`
	Err    *Failure `json:"error,omitempty"`
}

// Comparison holds both sides of an A/B turn.
type Comparison struct {
	SessionID     string `json:"session_id"`
	WithMemory    Branch `json:"with_memory"`
	WithoutMemory Branch `json:"without_memory"`
}

// Compare runs text with and without memory for the same session. The
// session id is resolved once, before either branch starts, and both
// branches then run concurrently.
func (o *Orchestrator) Compare(ctx context.Context, c identity.Carrier, text, backend, model string) *Comparison {
	if c == nil {
		c = identity.NewMemoryCarrier("")
	}
	sessionID := o.binder.GetOrCreate(c)

	ctx, span := o.tracer.Start(ctx, "orchestrator.Compare", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("backend", backend),
	))
	defer span.End()

	cmp := &Comparison{SessionID: sessionID}
	run := func(useMemory bool, out *Branch) {
		res, err := o.HandleTurn(ctx, Request{
			Text:      text,
			UseMemory: useMemory,
			Backend:   backend,
			Model:     model,
			// A private carrier pinned to the resolved id keeps the
			// branches from racing on the caller's carrier.
			Carrier: identity.NewMemoryCarrier(sessionID),
		})
		if err != nil {
			out.Err = asFailure(err)
			return
		}
		out.Result = res
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); run(true, &cmp.WithMemory) }()
	go func() { defer wg.Done(); run(false, &cmp.WithoutMemory) }()
	wg.Wait()

	return cmp
}
