package amqp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type NotificationHandler struct {
	logger logger.Logger
}

func NewNotificationHandler(logger logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		logger: logger,
	}
}

func (h *NotificationHandler) HandleNotification(ctx context.Context, body []byte) error {
	var msg interfaces.PourStatusMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		h.logger.Error("message_parse_failed", "Failed to parse notification", "", nil, err)
		return err
	}

	h.logger.Debug("notification_received", fmt.Sprintf("Received status update for pour %s", msg.OrderNumber),
		msg.OrderNumber, map[string]interface{}{
			"order_number": msg.OrderNumber,
			"new_status":   msg.NewStatus,
			"progress":     msg.ProgressPercent,
		})

	fmt.Printf("Pour %s: status changed from '%s' to '%s' (%d%%) by %s\n",
		msg.OrderNumber, msg.OldStatus, msg.NewStatus, msg.ProgressPercent, msg.ChangedBy)

	return nil
}
