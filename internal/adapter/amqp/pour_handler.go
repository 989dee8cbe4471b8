package amqp

import (
	"context"
	"encoding/json"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type PourHandler struct {
	service interfaces.TapService
	logger  logger.Logger
}

func NewPourHandler(service interfaces.TapService, logger logger.Logger) *PourHandler {
	return &PourHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PourHandler) HandlePour(ctx context.Context, body []byte) error {
	var msg interfaces.PourJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse pour job", "", nil, err)
		return err
	}

	return h.service.ProcessPour(ctx, msg)
}
