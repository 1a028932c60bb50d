package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/quantfold/crossarb/pkg/config"
	"github.com/quantfold/crossarb/pkg/types"
)

// AgentHandler handles HTTP requests for agent management.
type AgentHandler struct {
	agents   AgentManager
	defaults config.AgentConfig
	logger   *zap.Logger
}

// NewAgentHandler creates a new agent handler.
func NewAgentHandler(agents AgentManager, defaults config.AgentConfig, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		agents:   agents,
		defaults: defaults,
		logger:   logger,
	}
}

// agentConfigWire is the JSON shape of trading options. Durations are
// milliseconds; notionals are stable base units. Absent fields keep the
// process defaults (on create) or must be complete (on update).
type agentConfigWire struct {
	MinTradeSize       *int64  `json:"minTradeSize,omitempty"`
	MaxTradeSize       *int64  `json:"maxTradeSize,omitempty"`
	MinSpreadBps       *int64  `json:"minSpreadBps,omitempty"`
	MaxTotalTrades     *int    `json:"maxTotalTrades,omitempty"`
	TradingDurationMs  *int64  `json:"tradingDurationMs,omitempty"`
	DailyLossLimit     *int64  `json:"dailyLossLimit,omitempty"`
	MaxResolutionDays  *int    `json:"maxResolutionDays,omitempty"`
	FillPollIntervalMs *int64  `json:"fillPollIntervalMs,omitempty"`
	FillPollTimeoutMs  *int64  `json:"fillPollTimeoutMs,omitempty"`
	ExecutionMode      *string `json:"executionMode,omitempty"`
}

// apply overlays the wire fields onto a base config.
func (w *agentConfigWire) apply(base config.AgentConfig) config.AgentConfig {
	if w.MinTradeSize != nil {
		base.MinTradeSize = *w.MinTradeSize
	}
	if w.MaxTradeSize != nil {
		base.MaxTradeSize = *w.MaxTradeSize
	}
	if w.MinSpreadBps != nil {
		base.MinSpreadBps = *w.MinSpreadBps
	}
	if w.MaxTotalTrades != nil {
		base.MaxTotalTrades = *w.MaxTotalTrades
	}
	if w.TradingDurationMs != nil {
		base.TradingDuration = time.Duration(*w.TradingDurationMs) * time.Millisecond
	}
	if w.DailyLossLimit != nil {
		base.DailyLossLimit = *w.DailyLossLimit
	}
	if w.MaxResolutionDays != nil {
		base.MaxResolutionDays = *w.MaxResolutionDays
	}
	if w.FillPollIntervalMs != nil {
		base.FillPollInterval = time.Duration(*w.FillPollIntervalMs) * time.Millisecond
	}
	if w.FillPollTimeoutMs != nil {
		base.FillPollTimeout = time.Duration(*w.FillPollTimeoutMs) * time.Millisecond
	}
	if w.ExecutionMode != nil {
		base.ExecutionMode = config.ExecutionMode(*w.ExecutionMode)
	}
	return base
}

type createAgentRequest struct {
	UserID string           `json:"userId"`
	Config *agentConfigWire `json:"config,omitempty"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
	UserID string `json:"userId"`
}

// HandleList handles GET /api/agents.
func (h *AgentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.agents.StatusAll())
}

// HandleCreate handles POST /api/agents.
func (h *AgentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		h.writeError(w, "missing required field: userId", http.StatusBadRequest)
		return
	}

	cfg := h.defaults
	if req.Config != nil {
		cfg = req.Config.apply(cfg)
	}

	if err := h.agents.Create(req.UserID, cfg); err != nil {
		h.writeAgentError(w, err)
		return
	}

	h.logger.Info("agent-create-requested", zap.String("user", req.UserID))
	h.writeJSON(w, http.StatusCreated, statusResponse{Status: "created", UserID: req.UserID})
}

// HandleStatus handles GET /api/agents/{userID}.
func (h *AgentHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	state, err := h.agents.Status(userID)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, state)
}

// HandleStart handles POST /api/agents/{userID}/start.
func (h *AgentHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.agents.Start(r.Context(), userID); err != nil {
		h.writeAgentError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "started", UserID: userID})
}

// HandleStop handles POST /api/agents/{userID}/stop.
func (h *AgentHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.agents.Stop(r.Context(), userID); err != nil {
		h.writeAgentError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "stopped", UserID: userID})
}

// HandleRemove handles DELETE /api/agents/{userID}.
func (h *AgentHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.agents.Remove(r.Context(), userID); err != nil {
		h.writeAgentError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "removed", UserID: userID})
}

// HandleUpdateConfig handles PUT /api/agents/{userID}/config.
func (h *AgentHandler) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var wire agentConfigWire
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		h.writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Partial updates overlay the agent's current options.
	state, err := h.agents.Status(userID)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}

	if err := h.agents.UpdateConfig(userID, wire.apply(state.Config)); err != nil {
		h.writeAgentError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "updated", UserID: userID})
}

// writeAgentError maps supervisor errors onto HTTP statuses.
func (h *AgentHandler) writeAgentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, types.ErrAgentNotFound):
		h.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, types.ErrAgentExists):
		h.writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, types.ErrAgentLimit):
		h.writeError(w, err.Error(), http.StatusTooManyRequests)
	case errors.Is(err, types.ErrAgentRunning), errors.Is(err, types.ErrAgentNotRunning):
		h.writeError(w, err.Error(), http.StatusConflict)
	default:
		h.writeError(w, err.Error(), http.StatusBadRequest)
	}
}

func (h *AgentHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("response-encode-failed", zap.Error(err))
	}
}

func (h *AgentHandler) writeError(w http.ResponseWriter, msg string, code int) {
	h.writeJSON(w, code, ErrorResponse{Error: msg})
}
