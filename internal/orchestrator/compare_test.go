package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memscope/internal/identity"
)

func TestCompare_BareBranchMatchesIsolatedBareTurn(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	carrier := identity.NewMemoryCarrier("")

	_, err := h.orch.HandleTurn(ctx, Request{Text: "My favorite color is blue.", UseMemory: true, Carrier: carrier})
	require.NoError(t, err)
	enginesBefore := h.engines.Load()

	cmp := h.orch.Compare(ctx, carrier, "What's my favorite color?", "openai", "")
	require.Nil(t, cmp.WithMemory.Err)
	require.Nil(t, cmp.WithoutMemory.Err)

	assert.Contains(t, cmp.WithMemory.Result.Text, "blue")
	assert.True(t, cmp.WithMemory.Result.UseMemory)
	assert.False(t, cmp.WithoutMemory.Result.UseMemory)
	assert.Equal(t, cmp.SessionID, cmp.WithMemory.Result.SessionID)
	assert.Equal(t, cmp.SessionID, cmp.WithoutMemory.Result.SessionID)
	assert.Equal(t, enginesBefore+1, h.engines.Load(), "only the memory branch opens a scope")

	isolated, err := h.orch.HandleTurn(ctx, Request{Text: "What's my favorite color?", Backend: "openai", Carrier: carrier})
	require.NoError(t, err)
	assert.Equal(t, isolated, cmp.WithoutMemory.Result)
}

func TestCompare_FreshCarrierGetsOneSession(t *testing.T) {
	h := newHarness(t)
	carrier := identity.NewMemoryCarrier("")

	cmp := h.orch.Compare(context.Background(), carrier, "hello", "gemini", "")
	id, ok := carrier.SessionID()
	require.True(t, ok)
	assert.Equal(t, id, cmp.SessionID)
	assert.Equal(t, id, cmp.WithMemory.Result.SessionID)
	assert.Equal(t, id, cmp.WithoutMemory.Result.SessionID)
}

func TestCompare_BranchesFailIndependently(t *testing.T) {
	h := newHarness(t)

	cmp := h.orch.Compare(context.Background(), nil, " ", "openai", "")
	require.NotNil(t, cmp.WithMemory.Err)
	require.NotNil(t, cmp.WithoutMemory.Err)
	assert.Equal(t, KindInvalidInput, cmp.WithMemory.Err.Kind)
	assert.Equal(t, KindInvalidInput, cmp.WithoutMemory.Err.Kind)
	assert.Zero(t, h.srv.Calls())
}

func TestCompare_BareBranchIgnoresTurnOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	carrier := identity.NewMemoryCarrier("")
	question := Request{Text: "What's my favorite color?", Backend: "openai", Carrier: carrier}

	before, err := h.orch.HandleTurn(ctx, question)
	require.NoError(t, err)

	_, err = h.orch.HandleTurn(ctx, Request{Text: "My favorite color is blue.", UseMemory: true, Carrier: carrier})
	require.NoError(t, err)

	after, err := h.orch.HandleTurn(ctx, question)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a stored memory never reaches a bare turn")

	cmp := h.orch.Compare(ctx, carrier, question.Text, "openai", "")
	require.Nil(t, cmp.WithoutMemory.Err)
	require.Nil(t, cmp.WithMemory.Err)
	assert.Equal(t, before, cmp.WithoutMemory.Result)
	assert.Contains(t, cmp.WithMemory.Result.Text, "blue")
	assert.NotContains(t, cmp.WithoutMemory.Result.Text, "blue")
}
