package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/scope"
)

func TestConversation_ReusesOneScope(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	conv, err := h.orch.OpenConversation(ctx, ConversationOptions{Backend: "openai", EntityID: "demo-entity", ProcessID: "demo-cli"})
	require.NoError(t, err)
	assert.Equal(t, scope.Attribution{EntityID: "demo-entity", ProcessID: "demo-cli"}, conv.Attribution())
	assert.Equal(t, "openai", conv.Backend())
	assert.Equal(t, "gpt-test", conv.Model())

	_, err = conv.Turn(ctx, "My favorite color is blue.")
	require.NoError(t, err)

	_, err = conv.Turn(ctx, "  ")
	requireFailure(t, err, KindInvalidInput)

	_, err = conv.Turn(ctx, "I love jazz.")
	require.NoError(t, err, "conversation survives a failed turn")

	require.NoError(t, conv.Close(ctx))
	require.NoError(t, conv.Close(ctx))
	assert.EqualValues(t, 1, h.engines.Load())

	_, err = conv.Turn(ctx, "still there?")
	requireFailure(t, err, KindScopeClosed)
}

func TestConversation_MemoriesOutliveTheProcess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	opts := ConversationOptions{EntityID: "123456", ProcessID: "test-ai-agent"}

	first, err := h.orch.OpenConversation(ctx, opts)
	require.NoError(t, err)
	_, err = first.Turn(ctx, "My favorite color is blue.")
	require.NoError(t, err)
	require.NoError(t, first.Close(ctx))

	second, err := h.orch.OpenConversation(ctx, opts)
	require.NoError(t, err)
	defer second.Close(ctx)

	reply, err := second.Turn(ctx, "What's my favorite color?")
	require.NoError(t, err)
	assert.Contains(t, reply, "blue")
}

func TestOpenConversation_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.orch.OpenConversation(ctx, ConversationOptions{Backend: "nope", EntityID: "e", ProcessID: "p"})
	requireFailure(t, err, KindConfiguration)

	_, err = h.orch.OpenConversation(ctx, ConversationOptions{Backend: "openai", ProcessID: "p"})
	requireFailure(t, err, KindInternal)

	o := New(provider.NewGateway(provider.Settings{}, nil), nil, nil)
	_, err = o.OpenConversation(ctx, ConversationOptions{EntityID: "e", ProcessID: "p"})
	f := requireFailure(t, err, KindConfiguration)
	assert.Contains(t, f.Message, "OPENAI_API_KEY")
}
