package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const anthropicMaxTokens = 1024

// Anthropic calls the Messages API through the official SDK.
type Anthropic struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

func newAnthropic(baseURL, apiKey, model string, httpClient *http.Client, logger *zap.Logger) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Anthropic{
		client: anthropic.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (a *Anthropic) Backend() Backend { return BackendAnthropic }
func (a *Anthropic) Model() string    { return a.model }
func (a *Anthropic) sealed()          {}

// Generate sends prompt as a single user message and joins the text blocks
// of the reply.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observe(BackendAnthropic, start, err) }()

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &ProviderError{
				Backend:    BackendAnthropic,
				StatusCode: apiErr.StatusCode,
				Message:    parseErrorBody(apiErr.StatusCode, []byte(apiErr.RawJSON())),
				Err:        err,
			}
		}
		return "", &ProviderError{Backend: BackendAnthropic, Message: transportMessage(err), Err: err}
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text = sb.String()

	a.logger.Debug("anthropic reply",
		zap.Int("prompt_len", len(prompt)),
		zap.Int("reply_len", len(text)),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return text, nil
}
