// Package providertest runs fake model backends over httptest for tests of
// code that builds provider handles.
package providertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/memscope/internal/provider"
)

// ReplyFunc computes a reply from the prompt a backend received.
type ReplyFunc func(prompt string) string

// Echo replies with the prompt itself.
func Echo(prompt string) string { return prompt }

// Server is a fake that speaks the OpenAI, Gemini and Anthropic wire shapes.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	prompts []string
	reply   ReplyFunc
	status  int
}

// NewServer starts a fake backend and closes it with the test.
func NewServer(t testing.TB, reply ReplyFunc) *Server {
	t.Helper()
	s := &Server{reply: reply}
	mux := http.NewServeMux()
	mux.HandleFunc("/openai/chat/completions", s.handleOpenAI)
	mux.HandleFunc("/gemini/models/", s.handleGemini)
	mux.HandleFunc("/anthropic/v1/messages", s.handleAnthropic)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// FailWith makes every later request answer with status and an error body.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Prompts returns the prompts received so far, in order.
func (s *Server) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Calls returns the number of requests received.
func (s *Server) Calls() int {
	return len(s.Prompts())
}

// Settings returns gateway settings with every backend pointed at s.
func (s *Server) Settings() provider.Settings {
	return provider.Settings{
		OpenAIKey:        "sk-test",
		GoogleKey:        "g-test",
		AnthropicKey:     "a-test",
		OpenAIModel:      "gpt-test",
		GeminiModel:      "gemini-test",
		AnthropicModel:   "claude-test",
		OpenAIBaseURL:    s.URL + "/openai",
		GeminiBaseURL:    s.URL + "/gemini",
		AnthropicBaseURL: s.URL + "/anthropic/",
		HTTPClient:       s.Client(),
	}
}

// Gateway returns a gateway wired to s.
func (s *Server) Gateway() *provider.Gateway {
	return provider.NewGateway(s.Settings(), nil)
}

// record stores prompt and returns the reply, or ok=false when the server
// is set to fail.
func (s *Server) record(w http.ResponseWriter, prompt string) (string, bool) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	status := s.status
	s.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"message":"fake backend failure"}}`))
		return "", false
	}
	return s.reply(prompt), true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}
	reply, ok := s.record(w, req.Messages[len(req.Messages)-1].Content)
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"choices": []any{map[string]any{
			"index":   0,
			"message": map[string]any{"role": "assistant", "content": reply},
		}},
	})
}

func (s *Server) handleGemini(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Contents) == 0 {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}
	var prompt strings.Builder
	for _, p := range req.Contents[len(req.Contents)-1].Parts {
		prompt.WriteString(p.Text)
	}
	reply, ok := s.record(w, prompt.String())
	if !ok {
		return
	}
	// Split the reply across two parts to exercise part joining.
	runes := []rune(reply)
	half := len(runes) / 2
	writeJSON(w, map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": string(runes[:half])}, map[string]any{"text": string(runes[half:])}},
			},
			"finishReason": "STOP",
		}},
	})
}

func (s *Server) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}
	var prompt strings.Builder
	for _, c := range req.Messages[len(req.Messages)-1].Content {
		prompt.WriteString(c.Text)
	}
	reply, ok := s.record(w, prompt.String())
	if !ok {
		return
	}
	writeJSON(w, map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         req.Model,
		"content":       []any{map[string]any{"type": "text", "text": reply}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 1, "output_tokens": 1},
	})
}
