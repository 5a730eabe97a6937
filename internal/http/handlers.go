package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memscope/internal/orchestrator"
)

// TurnRequest is the request body for POST /turn.
type TurnRequest struct {
	Message string `json:"message"`
	// UseMemory defaults to true when omitted.
	UseMemory *bool  `json:"use_memory"`
	Backend   string `json:"backend"`
	Model     string `json:"model"`
}

// ChatRequest is the legacy request body for POST /api/chat.
type ChatRequest struct {
	Message   string `json:"message"`
	UseMemori *bool  `json:"use_memori"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
}

// ChatResponse is the legacy response body for POST /api/chat.
type ChatResponse struct {
	Response  string   `json:"response"`
	SessionID string   `json:"session_id"`
	UseMemori bool     `json:"use_memori"`
	Provider  string   `json:"provider"`
	Model     string   `json:"model"`
	Warnings  []string `json:"warnings,omitempty"`
}

// CompareRequest is the request body for POST /compare.
type CompareRequest struct {
	Message string `json:"message"`
	Backend string `json:"backend"`
	Model   string `json:"model"`
}

// MessageResponse is the response body for POST /reset.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status   string   `json:"status"`
	Backends []string `json:"backends"`
}

func (s *Server) handleHealth(c echo.Context) error {
	backends := s.config.Backends
	if backends == nil {
		backends = []string{}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Backends: backends})
}

func (s *Server) handleTurn(c echo.Context) error {
	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid turn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.orch.HandleTurn(c.Request().Context(), orchestrator.Request{
		Text:      req.Message,
		UseMemory: boolOr(req.UseMemory, true),
		Backend:   req.Backend,
		Model:     req.Model,
		Carrier:   s.carrier(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.orch.HandleTurn(c.Request().Context(), orchestrator.Request{
		Text:      req.Message,
		UseMemory: boolOr(req.UseMemori, true),
		Backend:   req.Provider,
		Model:     req.Model,
		Carrier:   s.carrier(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ChatResponse{
		Response:  res.Text,
		SessionID: res.SessionID,
		UseMemori: res.UseMemory,
		Provider:  res.Backend,
		Model:     res.Model,
		Warnings:  res.Warnings,
	})
}

func (s *Server) handleCompare(c echo.Context) error {
	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid compare request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cmp := s.orch.Compare(c.Request().Context(), s.carrier(c), req.Message, req.Backend, req.Model)
	if f := cmp.WithMemory.Err; f != nil && f.Kind == orchestrator.KindInvalidInput {
		return f
	}
	return c.JSON(http.StatusOK, cmp)
}

func (s *Server) handleReset(c echo.Context) error {
	s.orch.Reset(c.Request().Context(), s.carrier(c))
	return c.JSON(http.StatusOK, MessageResponse{Message: "Session reset successfully"})
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
