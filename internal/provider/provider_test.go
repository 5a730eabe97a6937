package provider_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memscope/internal/provider"
	"github.com/fyrsmithlabs/memscope/internal/provider/providertest"
)

func TestGateway_New_MissingCredential(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	gw := provider.NewGateway(provider.Settings{
		OpenAIBaseURL:    srv.URL,
		GeminiBaseURL:    srv.URL,
		AnthropicBaseURL: srv.URL,
	}, nil)

	tests := []struct {
		backend    string
		credential string
	}{
		{"openai", "OPENAI_API_KEY"},
		{"gemini", "GOOGLE_API_KEY"},
		{"anthropic", "ANTHROPIC_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			h, err := gw.New(tt.backend, "")
			require.Error(t, err)
			assert.Nil(t, h)

			var cfgErr *provider.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.credential, cfgErr.Credential)
			assert.Contains(t, err.Error(), tt.credential)
		})
	}
	assert.Zero(t, hits.Load(), "no network call before credentials are checked")
}

func TestGateway_New_UnknownBackend(t *testing.T) {
	gw := provider.NewGateway(provider.Settings{OpenAIKey: "k"}, nil)

	_, err := gw.New("mistral", "")
	var cfgErr *provider.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Empty(t, cfgErr.Credential)
	assert.Contains(t, err.Error(), "unsupported backend")
}

func TestGateway_New_ModelPrecedence(t *testing.T) {
	srv := providertest.NewServer(t, providertest.Echo)
	gw := srv.Gateway()

	h, err := gw.New("openai", "")
	require.NoError(t, err)
	assert.Equal(t, "gpt-test", h.Model())
	assert.Equal(t, provider.BackendOpenAI, h.Backend())

	h, err = gw.New("openai", "  gpt-override ")
	require.NoError(t, err)
	assert.Equal(t, "gpt-override", h.Model())

	h, err = gw.New("google", "")
	require.NoError(t, err)
	assert.Equal(t, provider.BackendGemini, h.Backend())
	assert.Equal(t, "gemini-test", h.Model())
}

func TestGateway_DefaultModels(t *testing.T) {
	gw := provider.NewGateway(provider.Settings{}, nil)
	assert.Equal(t, "gpt-4.1-mini", gw.DefaultModel(provider.BackendOpenAI))
	assert.Equal(t, "gemini-2.5-flash", gw.DefaultModel(provider.BackendGemini))
	assert.False(t, gw.Available(provider.BackendOpenAI))
}

func TestHandle_Generate_AllBackends(t *testing.T) {
	srv := providertest.NewServer(t, func(prompt string) string {
		return "reply to: " + prompt
	})
	gw := srv.Gateway()

	for _, b := range provider.Backends {
		t.Run(string(b), func(t *testing.T) {
			h, err := gw.New(string(b), "")
			require.NoError(t, err)

			text, err := h.Generate(context.Background(), "hello there")
			require.NoError(t, err)
			assert.Equal(t, "reply to: hello there", text)
		})
	}
	assert.Equal(t, 3, srv.Calls())
}

func TestOpenAI_RequestShape(t *testing.T) {
	var gotAuth, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, r.Body)
		gotBody = buf.String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	gw := provider.NewGateway(provider.Settings{OpenAIKey: "sk-abc", OpenAIBaseURL: srv.URL + "/"}, nil)
	h, err := gw.New("openai", "gpt-x")
	require.NoError(t, err)

	text, err := h.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, "Bearer sk-abc", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.JSONEq(t, `{"model":"gpt-x","messages":[{"role":"user","content":"ping"}]}`, gotBody)
}

func TestGemini_RequestShape(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"a"},{"text":"b"}]}}]}`))
	}))
	defer srv.Close()

	gw := provider.NewGateway(provider.Settings{GoogleKey: "g-key", GeminiBaseURL: srv.URL}, nil)
	h, err := gw.New("gemini", "gemini-2.0-flash")
	require.NoError(t, err)

	text, err := h.Generate(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
	assert.Equal(t, "g-key", gotKey)
	assert.Equal(t, "/models/gemini-2.0-flash:generateContent", gotPath)
}

func TestGemini_BlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	gw := provider.NewGateway(provider.Settings{GoogleKey: "g", GeminiBaseURL: srv.URL}, nil)
	h, err := gw.New("gemini", "")
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "x")
	var pErr *provider.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Contains(t, pErr.Message, "SAFETY")
}

func TestHandle_Generate_ProviderError(t *testing.T) {
	srv := providertest.NewServer(t, providertest.Echo)
	srv.FailWith(http.StatusTooManyRequests)
	gw := srv.Gateway()

	for _, b := range provider.Backends {
		t.Run(string(b), func(t *testing.T) {
			h, err := gw.New(string(b), "")
			require.NoError(t, err)

			_, err = h.Generate(context.Background(), "hi")
			var pErr *provider.ProviderError
			require.ErrorAs(t, err, &pErr)
			assert.Equal(t, b, pErr.Backend)
			assert.Equal(t, http.StatusTooManyRequests, pErr.StatusCode)
			assert.Equal(t, "fake backend failure", pErr.Message)
		})
	}
	assert.Equal(t, 3, srv.Calls(), "exactly one attempt per backend, no retries")
}

func TestHandle_Generate_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	gw := provider.NewGateway(provider.Settings{OpenAIKey: "k", OpenAIBaseURL: url}, nil)
	h, err := gw.New("openai", "")
	require.NoError(t, err)

	_, err = h.Generate(context.Background(), "hi")
	var pErr *provider.ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Zero(t, pErr.StatusCode)
	assert.NotNil(t, errors.Unwrap(pErr))
}

func TestParseBackend(t *testing.T) {
	b, err := provider.ParseBackend(" OpenAI ")
	require.NoError(t, err)
	assert.Equal(t, provider.BackendOpenAI, b)

	b, err = provider.ParseBackend("claude")
	require.NoError(t, err)
	assert.Equal(t, provider.BackendAnthropic, b)

	_, err = provider.ParseBackend("")
	require.Error(t, err)
}
