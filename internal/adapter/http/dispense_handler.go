package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type DispenseHandler struct {
	pours    interfaces.PourService
	tracking interfaces.TrackingService
	logger   logger.Logger
}

func NewDispenseHandler(pours interfaces.PourService, tracking interfaces.TrackingService, logger logger.Logger) *DispenseHandler {
	return &DispenseHandler{
		pours:    pours,
		tracking: tracking,
		logger:   logger,
	}
}

type StartPourRequest struct {
	Token string                   `json:"token"`
	Items []interfaces.CartItemDTO `json:"items"`
}

type StartPourResponse struct {
	Success     bool   `json:"success"`
	OrderNumber string `json:"order_number"`
}

type PourStatusBody struct {
	Status          domain.PourStatus `json:"status"`
	ProgressPercent int               `json:"progress_percent"`
	Message         *string           `json:"message,omitempty"`
	ProcessedBy     *string           `json:"processed_by,omitempty"`
}

// StartPour serves POST /dispense/start. HTTP 403 means the session must
// pass age verification first.
func (h *DispenseHandler) StartPour(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartPourRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.pours.StartPour(r.Context(), interfaces.StartPourCommand{
		Token: req.Token,
		Items: req.Items,
	})
	if err != nil {
		if errors.Is(err, domain.ErrVerificationRequired) {
			respondError(w, err.Error(), http.StatusForbidden)
			return
		}
		h.logger.Error("pour_start_failed", "Failed to start pour", req.Token, nil, err)
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusCreated, StartPourResponse{
		Success:     true,
		OrderNumber: order.Number,
	})
}

// PourStatus serves GET /dispense/status?order=<number>.
func (h *DispenseHandler) PourStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderNumber := r.URL.Query().Get("order")
	if orderNumber == "" {
		respondError(w, "order query parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.pours.GetPourStatus(r.Context(), orderNumber)
	if err != nil {
		respondError(w, "Pour order not found", http.StatusNotFound)
		return
	}

	respondJSON(w, http.StatusOK, PourStatusBody{
		Status:          status.Status,
		ProgressPercent: status.ProgressPercent,
		Message:         status.Message,
		ProcessedBy:     status.ProcessedBy,
	})
}

// PourHistory serves GET /dispense/history?order=<number>.
func (h *DispenseHandler) PourHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	orderNumber := r.URL.Query().Get("order")
	if orderNumber == "" {
		respondError(w, "order query parameter is required", http.StatusBadRequest)
		return
	}

	history, err := h.tracking.GetPourHistory(r.Context(), orderNumber)
	if err != nil {
		respondError(w, "Pour order not found", http.StatusNotFound)
		return
	}

	resp := make([]map[string]interface{}, len(history))
	for i, log := range history {
		resp[i] = map[string]interface{}{
			"status":     log.Status,
			"timestamp":  log.ChangedAt,
			"changed_by": log.ChangedBy,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// StationsStatus serves GET /stations/status.
func (h *DispenseHandler) StationsStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stations, err := h.tracking.GetStationsStatus(r.Context())
	if err != nil {
		respondError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := make([]map[string]interface{}, len(stations))
	for i, station := range stations {
		resp[i] = map[string]interface{}{
			"station_name":    station.StationName,
			"status":          station.Status,
			"pours_completed": station.PoursCompleted,
			"last_seen":       station.LastSeen,
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
