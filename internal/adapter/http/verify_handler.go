package http

import (
	"encoding/json"
	"net/http"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type VerifyHandler struct {
	service interfaces.VerifyService
	logger  logger.Logger
}

func NewVerifyHandler(service interfaces.VerifyService, logger logger.Logger) *VerifyHandler {
	return &VerifyHandler{
		service: service,
		logger:  logger,
	}
}

type VerifyAgeRequest struct {
	Token        string `json:"token"`
	Method       string `json:"method"`
	Payload      []byte `json:"payload"`
	BeverageKind string `json:"beverage_kind,omitempty"`
}

type VerifyAgeResponse struct {
	Verified     bool   `json:"verified"`
	EstimatedAge int    `json:"estimated_age,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (h *VerifyHandler) VerifyAge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VerifyAgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.VerifyAge(r.Context(), interfaces.VerifyAgeCommand{
		Token:   req.Token,
		Method:  domain.VerificationMethod(req.Method),
		Payload: req.Payload,
		Kind:    domain.BeverageKind(req.BeverageKind),
	})
	if err != nil {
		h.logger.Error("verify_failed", "Verification attempt rejected", req.Token, nil, err)
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	respondJSON(w, http.StatusOK, VerifyAgeResponse{
		Verified:     result.Verified,
		EstimatedAge: result.EstimatedAge,
		Message:      result.Message,
	})
}
