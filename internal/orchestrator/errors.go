package orchestrator

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/scope"
)

// Kind classifies a failed turn.
type Kind string

const (
	KindInvalidInput  Kind = "invalid_input"
	KindConfiguration Kind = "configuration"
	KindProvider      Kind = "provider"
	KindScopeClosed   Kind = "scope_closed"
	KindInternal      Kind = "internal"
)

// InvalidInputError rejects a turn before any provider or engine call.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string { return e.Reason }

// Failure is the caller-facing form of any error raised during a turn.
type Failure struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (f *Failure) Error() string { return f.Message }

func (f *Failure) Unwrap() error { return f.Err }

// asFailure classifies err. A *Failure passes through unchanged.
func asFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	var (
		invalid *InvalidInputError
		cfgErr  *provider.ConfigurationError
		provErr *provider.ProviderError
	)
	switch {
	case errors.As(err, &invalid):
		return &Failure{Kind: KindInvalidInput, Message: invalid.Reason, Err: err}
	case errors.As(err, &cfgErr):
		return &Failure{Kind: KindConfiguration, Message: cfgErr.Error(), Err: err}
	case errors.As(err, &provErr):
		return &Failure{Kind: KindProvider, Message: provErr.Error(), Err: err}
	case errors.Is(err, scope.ErrScopeClosed):
		return &Failure{Kind: KindScopeClosed, Message: "memory scope is closed", Err: err}
	}
	return &Failure{Kind: KindInternal, Message: err.Error(), Err: err}
}

func panicFailure(r any) *Failure {
	return &Failure{Kind: KindInternal, Message: fmt.Sprintf("internal error: %v", r)}
}
