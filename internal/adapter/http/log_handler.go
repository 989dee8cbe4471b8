package http

import (
	"encoding/json"
	"net/http"

	"github.com/tapstand/kiosk/internal/adapter/logger"
)

// LogHandler is the fire-and-forget diagnostic sink for kiosk clients.
// Entries are forwarded to the service logger tagged with their source.
type LogHandler struct {
	logger logger.Logger
}

func NewLogHandler(logger logger.Logger) *LogHandler {
	return &LogHandler{logger: logger}
}

type ClientLogRequest struct {
	Level   string `json:"level"`
	Source  string `json:"source"`
	Message string `json:"message"`
}

func (h *LogHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ClientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	details := map[string]interface{}{"source": req.Source}
	switch req.Level {
	case "error":
		h.logger.Error("client_log", req.Message, req.Source, details, nil)
	case "warn":
		h.logger.Warn("client_log", req.Message, req.Source, details)
	case "debug":
		h.logger.Debug("client_log", req.Message, req.Source, details)
	default:
		h.logger.Info("client_log", req.Message, req.Source, details)
	}

	w.WriteHeader(http.StatusNoContent)
}
