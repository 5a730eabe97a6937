package provider

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ConfigurationError reports a backend that cannot be constructed: unknown
// name or missing credential. It is raised before any network call.
type ConfigurationError struct {
	Backend    string
	Credential string // env variable name when a credential is missing
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Credential != "" {
		return fmt.Sprintf("Set %s in your environment before using the %s backend.", e.Credential, e.Backend)
	}
	return fmt.Sprintf("provider %q: %s", e.Backend, e.Reason)
}

// ProviderError is a failed model call. The gateway never retries.
type ProviderError struct {
	Backend    Backend
	StatusCode int // zero for transport failures
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned %d: %s", e.Backend, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Backend, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// parseErrorBody extracts a readable message from a backend error body.
// OpenAI, Gemini and Anthropic all use {"error":{"message":...}}.
func parseErrorBody(statusCode int, body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			return errResp.Error.Message
		}
		if errResp.Message != "" {
			return errResp.Message
		}
	}

	switch statusCode {
	case http.StatusUnauthorized:
		return "authentication failed, check your API key"
	case http.StatusForbidden:
		return "access denied, the API key lacks the required permissions"
	case http.StatusNotFound:
		return "model or endpoint not found"
	case http.StatusTooManyRequests:
		return "rate limited, too many requests"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "provider service temporarily unavailable"
	case 529:
		return "provider is overloaded"
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	if s == "" {
		return http.StatusText(statusCode)
	}
	return s
}

// transportMessage turns common network errors into short messages.
func transportMessage(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused"
	case strings.Contains(msg, "no such host"):
		return "host not found"
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "Client.Timeout"):
		return "request timed out"
	case strings.Contains(msg, "context canceled"):
		return "request canceled"
	}
	return msg
}
