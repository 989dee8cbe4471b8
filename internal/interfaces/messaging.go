package interfaces

import (
	"context"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
)

// PourJobMessage is the RabbitMQ payload queued for tap workers when a pour
// order is started.
type PourJobMessage struct {
	OrderNumber  string        `json:"order_number"`
	SessionToken string        `json:"session_token"`
	Items        []PourItemMsg `json:"items"`
	TotalAmount  string        `json:"total_amount"`
}

type PourItemMsg struct {
	Kind      domain.BeverageKind `json:"kind"`
	SizeMl    int                 `json:"size_ml"`
	Quantity  int                 `json:"quantity"`
	UnitPrice string              `json:"unit_price"`
}

// PourStatusMessage is published to the status fanout on every pour stage
// change.
type PourStatusMessage struct {
	OrderNumber     string            `json:"order_number"`
	OldStatus       domain.PourStatus `json:"old_status"`
	NewStatus       domain.PourStatus `json:"new_status"`
	ProgressPercent int               `json:"progress_percent"`
	ChangedBy       string            `json:"changed_by"`
	Timestamp       time.Time         `json:"timestamp"`
}

type MessagePublisher interface {
	PublishPourJob(ctx context.Context, msg PourJobMessage) error
	PublishPourStatus(ctx context.Context, msg PourStatusMessage) error
}

type MessageConsumer interface {
	ConsumePourJobs(ctx context.Context, handler PourJobHandler) error
	ConsumeStatusUpdates(ctx context.Context, handler StatusUpdateHandler) error
}

type (
	PourJobHandler      func(ctx context.Context, body []byte) error
	StatusUpdateHandler func(ctx context.Context, body []byte) error
)
