package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls the chat completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

func newOpenAI(baseURL, apiKey, model string, client *http.Client, logger *zap.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  client,
		logger:  logger,
	}
}

func (o *OpenAI) Backend() Backend { return BackendOpenAI }
func (o *OpenAI) Model() string    { return o.model }
func (o *OpenAI) sealed()          {}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model    string       `json:"model"`
	Messages []oaiMessage `json:"messages"`
}

type oaiResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns
// choices[0].message.content.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observe(BackendOpenAI, start, err) }()

	payload, err := json.Marshal(oaiRequest{
		Model:    o.model,
		Messages: []oaiMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	body, err := doJSON(o.client, req, BackendOpenAI)
	if err != nil {
		return "", err
	}

	var resp oaiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProviderError{Backend: BackendOpenAI, Message: "malformed response", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Backend: BackendOpenAI, Message: "response has no choices"}
	}
	if c := resp.Choices[0].Message.Content; c != nil {
		text = *c
	}

	o.logger.Debug("openai reply", zap.Int("prompt_len", len(prompt)), zap.Int("reply_len", len(text)))
	return text, nil
}

// doJSON executes req and returns the body of a 2xx response. Everything
// else becomes a *ProviderError.
func doJSON(client *http.Client, req *http.Request, b Backend) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Backend: b, Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ProviderError{Backend: b, StatusCode: resp.StatusCode, Message: "reading response body", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Backend: b, StatusCode: resp.StatusCode, Message: parseErrorBody(resp.StatusCode, body)}
	}
	return body, nil
}
