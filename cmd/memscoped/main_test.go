package main

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/memscope/internal/config"
)

func TestCheckBackends(t *testing.T) {
	var buf bytes.Buffer
	err := checkBackends(config.Default(), &buf)
	assert.ErrorIs(t, err, errNoBackends)
	assert.Contains(t, buf.String(), "OPENAI_API_KEY")
	assert.Contains(t, buf.String(), "GOOGLE_API_KEY")

	buf.Reset()
	cfg := config.Default()
	cfg.Google.APIKey = "g-key"
	require.NoError(t, checkBackends(cfg, &buf))
	assert.Contains(t, buf.String(), "OpenAI available: false")
	assert.Contains(t, buf.String(), "Gemini available: true")
}

func TestPrintVersion(t *testing.T) {
	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), "Version:    dev")
}

func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-integration")
	t.Setenv("SERVER_HTTP_PORT", "18084")
	t.Setenv("MEMORY_PATH", t.TempDir())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	var out bytes.Buffer
	go func() {
		errCh <- run(ctx, "", &out)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18084/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shutdown in time")
	}
}
