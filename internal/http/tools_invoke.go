package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/gomemory/internal/tools"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

// maxInvokeBody bounds a tool invocation request body.
const maxInvokeBody = 1 << 20

// ToolsInvokeHandler handles POST /v1/tools/invoke (direct tool invocation).
type ToolsInvokeHandler struct {
	registry *tools.Registry
	logger   *slog.Logger
}

func NewToolsInvokeHandler(registry *tools.Registry, logger *slog.Logger) *ToolsInvokeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ToolsInvokeHandler{registry: registry, logger: logger}
}

type toolsInvokeRequest struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	DryRun bool           `json:"dryRun,omitempty"`
}

// ServeHTTP answers with the tool's Result envelope; the HTTP status follows
// the envelope's error code.
func (h *ToolsInvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "use POST")
		return
	}

	var req toolsInvokeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, protocol.ErrValidation, "invalid request body: "+err.Error())
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, protocol.ErrValidation, "tool is required")
		return
	}

	tool, ok := h.registry.Get(req.Tool)
	if !ok {
		writeError(w, http.StatusNotFound, protocol.ErrNotFound, fmt.Sprintf("tool %q not found", req.Tool))
		return
	}

	if req.DryRun {
		writeJSON(w, http.StatusOK, describeTool(tool))
		return
	}

	h.logger.Debug("tools invoke request", "tool", req.Tool)
	result := h.registry.Execute(r.Context(), req.Tool, req.Args)
	writeJSON(w, protocol.HTTPStatus(result.Code), result)
}

// ToolsListHandler handles GET /v1/tools.
func ToolsListHandler(registry *tools.Registry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		list := registry.Tools()
		out := make([]toolDescription, len(list))
		for i, t := range list {
			out[i] = describeTool(t)
		}
		writeJSON(w, http.StatusOK, map[string]any{"tools": out})
	})
}

type toolDescription struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	ReadOnly    bool           `json:"readOnly"`
}

func describeTool(t tools.Tool) toolDescription {
	d := toolDescription{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	if ro, ok := t.(tools.ReadOnlyTool); ok {
		d.ReadOnly = ro.ReadOnly()
	}
	return d
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, tools.ErrorResult(code, message))
}
