package interfaces

import (
	"context"

	"github.com/tapstand/kiosk/internal/domain"
)

// SessionRepository persists session projections, one row per token.
type SessionRepository interface {
	Upsert(ctx context.Context, proj SessionProjection) error
	Find(ctx context.Context, token string) (*SessionProjection, bool, error)
	SetVerified(ctx context.Context, token string, estimatedAge int) error
	Delete(ctx context.Context, token string) error
}

// PourRepository persists pour orders and their status history.
type PourRepository interface {
	Create(ctx context.Context, order *domain.PourOrder) error
	FindByNumber(ctx context.Context, number string) (*domain.PourOrder, error)
	GenerateOrderNumber(ctx context.Context) (string, error)
	UpdateStatusWithLog(ctx context.Context, order *domain.PourOrder, changedBy string) error
	HasActivePour(ctx context.Context, sessionToken string) (bool, error)
	GetStatusHistory(ctx context.Context, orderID int) ([]*domain.PourStatusLog, error)
}

// StationRepository tracks tap stations and their heartbeats.
type StationRepository interface {
	Create(ctx context.Context, station *domain.Station) error
	FindByName(ctx context.Context, name string) (*domain.Station, error)
	Update(ctx context.Context, station *domain.Station) error
	UpdateHeartbeat(ctx context.Context, name string) error
	ListAll(ctx context.Context) ([]*domain.Station, error)
	IncrementPoursCompleted(ctx context.Context, name string) error
}
