package memory

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/provider/providertest"
	"github.com/fyrsmithlabs/memscope/internal/secrets"
)

// rememberingReply answers from whatever facts were injected into the
// prompt, like a model would.
func rememberingReply(prompt string) string {
	if strings.Contains(prompt, "The user's favorite color is blue.") {
		return "Your favorite color is blue."
	}
	return "Noted."
}

func newTestEngine(t *testing.T, conns ConnFactory, gw *provider.Gateway, entity string) *Engine {
	t.Helper()
	e, err := NewEngine(conns, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	h, err := gw.New("openai", "")
	require.NoError(t, err)
	require.NoError(t, e.Register(h))
	require.NoError(t, e.Attribution(entity, "test"))
	require.NoError(t, e.EnsureSchema(context.Background()))
	return e
}

func TestEngine_RecallAcrossRestart(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, rememberingReply)
	dir := t.TempDir()

	first := newTestEngine(t, NewConnFactory(StoreConfig{Path: dir}, nil), srv.Gateway(), "entity-1")
	reply, err := first.Generate(ctx, "My favorite color is blue.")
	require.NoError(t, err)
	assert.Equal(t, "Noted.", reply)
	require.NoError(t, first.AugmentAndWait(ctx))
	require.NoError(t, first.Close())

	// A new factory over the same directory stands in for a new process.
	second := newTestEngine(t, NewConnFactory(StoreConfig{Path: dir}, nil), srv.Gateway(), "entity-1")
	reply, err = second.Generate(ctx, "What's my favorite color?")
	require.NoError(t, err)
	assert.Contains(t, reply, "blue")

	prompts := srv.Prompts()
	require.Len(t, prompts, 2)
	assert.Equal(t, "My favorite color is blue.", prompts[0])
	assert.True(t, strings.HasPrefix(prompts[1], recallHeader))
	assert.True(t, strings.HasSuffix(prompts[1], "What's my favorite color?"))
}

func TestEngine_EntitiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, rememberingReply)
	conns := NewConnFactory(StoreConfig{}, nil)

	alice := newTestEngine(t, conns, srv.Gateway(), "alice")
	_, err := alice.Generate(ctx, "My favorite color is blue.")
	require.NoError(t, err)
	require.NoError(t, alice.AugmentAndWait(ctx))

	bob := newTestEngine(t, conns, srv.Gateway(), "bob")
	reply, err := bob.Generate(ctx, "What's my favorite color?")
	require.NoError(t, err)
	assert.Equal(t, "Noted.", reply)
	assert.Equal(t, "What's my favorite color?", srv.Prompts()[1])
}

func TestEngine_BarrierCoversEveryQueuedTurn(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, providertest.Echo)
	e := newTestEngine(t, NewConnFactory(StoreConfig{}, nil), srv.Gateway(), "e")

	for _, msg := range []string{"I live in Lisbon.", "I love green tea.", "Call me Sam."} {
		_, err := e.Generate(ctx, msg)
		require.NoError(t, err)
	}
	require.NoError(t, e.AugmentAndWait(ctx))

	for _, q := range []string{"Lisbon", "green tea", "called Sam"} {
		hits, err := e.Recall(ctx, "e", q)
		require.NoError(t, err)
		assert.NotEmpty(t, hits, "query %q", q)
	}
}

func TestEngine_FailedCallQueuesNothing(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, providertest.Echo)
	e := newTestEngine(t, NewConnFactory(StoreConfig{}, nil), srv.Gateway(), "e")

	srv.FailWith(http.StatusInternalServerError)
	_, err := e.Generate(ctx, "My favorite color is green.")
	var pErr *provider.ProviderError
	require.ErrorAs(t, err, &pErr)
	require.NoError(t, e.AugmentAndWait(ctx))

	hits, err := e.Recall(ctx, "e", "favorite color")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestEngine_ScrubsSecretsBeforePersisting(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, providertest.Echo)
	e := newTestEngine(t, NewConnFactory(StoreConfig{}, nil), srv.Gateway(), "e")

	_, err := e.Generate(ctx, "My api key is sk-proj-abcdefghijklmnopqrstuvwx")
	require.NoError(t, err)
	require.NoError(t, e.AugmentAndWait(ctx))

	hits, err := e.Recall(ctx, "e", "api key")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Text, "[REDACTED]")
	assert.NotContains(t, hits[0].Text, "abcdefghijklmnop")
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, providertest.Echo)
	conns := NewConnFactory(StoreConfig{}, nil)

	e, err := NewEngine(conns, Options{})
	require.NoError(t, err)

	_, err = e.Generate(ctx, "hi")
	assert.ErrorIs(t, err, ErrNotRegistered)

	h, err := srv.Gateway().New("gemini", "")
	require.NoError(t, err)
	require.NoError(t, e.Register(h))
	assert.ErrorIs(t, e.Register(h), ErrAlreadyRegistered)

	_, err = e.Generate(ctx, "hi")
	assert.ErrorIs(t, err, ErrNoAttribution)
	assert.Error(t, e.Attribution(" ", "p"))

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.NoError(t, e.AugmentAndWait(ctx), "nothing pending after close")

	_, err = e.Generate(ctx, "hi")
	assert.ErrorIs(t, err, ErrEngineClosed)
	assert.Zero(t, srv.Calls())
}

func TestEngine_AugmentAndWaitHonoursContext(t *testing.T) {
	srv := providertest.NewServer(t, providertest.Echo)
	e := newTestEngine(t, NewConnFactory(StoreConfig{}, nil), srv.Gateway(), "e")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := e.AugmentAndWait(ctx)
	// The marker may be queued before cancellation is observed; either way
	// the call must not hang.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestNewEngine_RequiresFactory(t *testing.T) {
	_, err := NewEngine(nil, Options{})
	assert.Error(t, err)
}

// explodingScrubber panics on any fact mentioning "boom".
type explodingScrubber struct{ secrets.Noop }

func (explodingScrubber) Scrub(content string) *secrets.Result {
	if strings.Contains(content, "boom") {
		panic("scrubber exploded")
	}
	return secrets.Noop{}.Scrub(content)
}

func TestEngine_WorkerSurvivesPanickingJob(t *testing.T) {
	ctx := context.Background()
	srv := providertest.NewServer(t, providertest.Echo)
	e, err := NewEngine(NewConnFactory(StoreConfig{}, nil), Options{Scrubber: explodingScrubber{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	h, err := srv.Gateway().New("openai", "")
	require.NoError(t, err)
	require.NoError(t, e.Register(h))
	require.NoError(t, e.Attribution("e", "test"))
	require.NoError(t, e.EnsureSchema(ctx))

	_, err = e.Generate(ctx, "My favorite word is boom.")
	require.NoError(t, err)
	_, err = e.Generate(ctx, "My favorite color is blue.")
	require.NoError(t, err)
	require.NoError(t, e.AugmentAndWait(ctx))

	hits, err := e.Recall(ctx, "e", "favorite color")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Text, "blue")
}
