// Package mcphttp serves the plain HTTP+JSON discovery and invocation API.
package mcphttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

// Pinger reports backing-store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerInfo identifies the server in the /mcp/info response.
type ServerInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	describeUC *usecase.DescribeToolsUseCase
	executeUC  *usecase.ExecuteToolUseCase
	health     Pinger
	info       ServerInfo
	logger     *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(
	describeUC *usecase.DescribeToolsUseCase,
	executeUC *usecase.ExecuteToolUseCase,
	health Pinger,
	info ServerInfo,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		describeUC: describeUC,
		executeUC:  executeUC,
		health:     health,
		info:       info,
		logger:     logger.With("component", "mcphttp_handler"),
	}
}

// RegisterRoutes sets up the discovery, invocation and health routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /mcp/info", h.handleInfo)
	mux.HandleFunc("GET /mcp/tools", h.handleListTools)
	mux.HandleFunc("POST /mcp/call_tool", h.handleCallTool)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// discoveryResponse is the wire form of the discovery endpoint.
type discoveryResponse struct {
	Tools []domain.ToolDescriptor `json:"tools"`
}

// handleListTools implements GET /mcp/tools.
func (h *Handlers) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := h.describeUC.Execute()
	h.logger.Debug("Serving tool list.", slog.Int("count", len(tools)))
	writeJSON(w, h.logger, http.StatusOK, discoveryResponse{Tools: tools})
}

// handleCallTool implements POST /mcp/call_tool. Per-call failures are
// reported inside the envelope with HTTP 200; only an unreadable request
// body is an HTTP-level error.
func (h *Handlers) handleCallTool(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	log := h.logger.With(slog.String("request_id", requestID))

	var req domain.InvocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("Failed to decode invocation request body.", slog.Any("error", err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Name == "" {
		log.Warn("Invocation request missing tool name.")
		http.Error(w, "missing 'name' field in request body", http.StatusBadRequest)
		return
	}

	log.Info("Received invocation request.", slog.String("tool_name", req.Name))
	result := h.executeUC.Execute(r.Context(), req.Name, req.Arguments)

	w.Header().Set("X-Request-Id", requestID)
	writeJSON(w, log, http.StatusOK, result)
}

// handleInfo implements GET /mcp/info.
func (h *Handlers) handleInfo(w http.ResponseWriter, r *http.Request) {
	tools := h.describeUC.Execute()
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"name":         h.info.Name,
		"version":      h.info.Version,
		"description":  h.info.Description,
		"capabilities": []string{"tools"},
		"tool_count":   len(tools),
	})
}

// handleHealth implements GET /healthz.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Error("Health check failed.", slog.Any("error", err))
			writeJSON(w, h.logger, http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response.", slog.Any("error", err))
	}
}
