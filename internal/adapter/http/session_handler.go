package http

import (
	"encoding/json"
	"net/http"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type SessionHandler struct {
	service interfaces.StateService
	logger  logger.Logger
}

func NewSessionHandler(service interfaces.StateService, logger logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		logger:  logger,
	}
}

type SaveStateResponse struct {
	Success bool `json:"success"`
}

type LoadStateResponse struct {
	Success bool                          `json:"success"`
	State   *interfaces.SessionProjection `json:"state,omitempty"`
}

// HandleState serves POST (save) and GET (load) on /session/state.
func (h *SessionHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.saveState(w, r)
	case http.MethodGet:
		h.loadState(w, r)
	default:
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) saveState(w http.ResponseWriter, r *http.Request) {
	var proj interfaces.SessionProjection
	if err := json.NewDecoder(r.Body).Decode(&proj); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Save(r.Context(), proj); err != nil {
		h.logger.Error("state_save_failed", "Failed to save session state", proj.Token, nil, err)
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, SaveStateResponse{Success: true})
}

func (h *SessionHandler) loadState(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token query parameter is required", http.StatusBadRequest)
		return
	}

	proj, found, err := h.service.Load(r.Context(), token)
	if err != nil {
		h.logger.Error("state_load_failed", "Failed to load session state", token, nil, err)
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !found {
		respondJSON(w, http.StatusOK, LoadStateResponse{Success: false})
		return
	}

	respondJSON(w, http.StatusOK, LoadStateResponse{Success: true, State: proj})
}
