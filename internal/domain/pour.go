package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PourStatus string

const (
	PourQueued     PourStatus = "queued"
	PourCup        PourStatus = "cup"
	PourPouring    PourStatus = "pouring"
	PourDelivering PourStatus = "delivering"
	PourComplete   PourStatus = "complete"
	PourError      PourStatus = "error"
)

// PourOrder is the server-side record of one started dispense operation.
// A tap worker drives it through the pour stages and logs every change.
type PourOrder struct {
	ID              int
	Number          string
	SessionToken    string
	Items           []PourItem
	TotalAmount     decimal.Decimal
	Status          PourStatus
	ProgressPercent int
	Message         *string
	ProcessedBy     *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// PourItem is one cart line of a pour order.
type PourItem struct {
	ID        int
	OrderID   int
	Kind      BeverageKind
	SizeMl    int
	Quantity  int
	UnitPrice decimal.Decimal
}

// NewPourOrder creates a queued pour order for a session's cart.
func NewPourOrder(sessionToken string, items []PourItem) (*PourOrder, error) {
	if sessionToken == "" || len(items) == 0 {
		return nil, ErrPrerequisiteNotMet
	}
	for _, item := range items {
		if !KnownBeverage(item.Kind) || !ValidSize(item.SizeMl) {
			return nil, ErrInvalidSelection
		}
		if item.Quantity < 1 {
			return nil, ErrInvalidSelection
		}
	}

	order := &PourOrder{
		SessionToken: sessionToken,
		Items:        items,
		Status:       PourQueued,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	order.CalculateTotal()
	return order, nil
}

// CalculateTotal recomputes the total amount from the item lines.
func (o *PourOrder) CalculateTotal() {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	o.TotalAmount = total
}

// TransitionTo moves the pour to a new status and stamps progress.
func (o *PourOrder) TransitionTo(newStatus PourStatus, processedBy string) error {
	if !o.CanTransitionTo(newStatus) {
		return ErrInvalidStatusTransition
	}

	o.Status = newStatus
	o.ProgressPercent = PourProgress(newStatus)
	o.UpdatedAt = time.Now()

	if processedBy != "" {
		o.ProcessedBy = &processedBy
	}

	if newStatus == PourComplete || newStatus == PourError {
		now := time.Now()
		o.CompletedAt = &now
	}

	return nil
}

// CanTransitionTo checks if the pour can move to the new status.
func (o *PourOrder) CanTransitionTo(newStatus PourStatus) bool {
	validTransitions := map[PourStatus][]PourStatus{
		PourQueued:     {PourCup, PourError},
		PourCup:        {PourPouring, PourError},
		PourPouring:    {PourDelivering, PourError},
		PourDelivering: {PourComplete, PourError},
		PourComplete:   {},
		PourError:      {},
	}

	allowed := validTransitions[o.Status]
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// PourProgress maps a pour status to its nominal progress percent.
func PourProgress(status PourStatus) int {
	switch status {
	case PourQueued:
		return 0
	case PourCup:
		return 20
	case PourPouring:
		return 60
	case PourDelivering:
		return 85
	case PourComplete:
		return 100
	default:
		return 0
	}
}

// StageTime returns how long the given pour stage takes for the order, a
// simulation stand-in for the real tap hardware.
func (o *PourOrder) StageTime(status PourStatus) time.Duration {
	cups := 0
	for _, item := range o.Items {
		cups += item.Quantity
	}
	if cups < 1 {
		cups = 1
	}

	switch status {
	case PourCup:
		return time.Duration(cups) * time.Second
	case PourPouring:
		return time.Duration(cups) * 3 * time.Second
	case PourDelivering:
		return 2 * time.Second
	default:
		return time.Second
	}
}

// PourStatusLog is a log entry for pour status changes.
type PourStatusLog struct {
	ID        int
	OrderID   int
	Status    PourStatus
	ChangedBy string
	ChangedAt time.Time
	Notes     *string
}
