package interfaces

import (
	"context"
	"time"

	"github.com/tapstand/kiosk/internal/domain"
)

// Client-side collaborators of the session machine. The kiosk UI supplies a
// Renderer; everything else talks to the session service over HTTP.

// RemoteStateStore mirrors the OrderSession projection on the server so a
// session survives page reloads.
type RemoteStateStore interface {
	Push(ctx context.Context, proj SessionProjection) error
	Pull(ctx context.Context, token string) (*SessionProjection, bool, error)
}

// AgeVerifier submits a verification attempt and returns the outcome.
type AgeVerifier interface {
	Verify(ctx context.Context, cmd VerifyAgeCommand) (*VerifyAgeResult, error)
}

// DispenseGateway starts pours and reads their progress. StartPour returns
// domain.ErrVerificationRequired when the server rejects a restricted cart
// without a verified session.
type DispenseGateway interface {
	StartPour(ctx context.Context, token string, items []CartItemDTO) (orderNumber string, err error)
	PourStatus(ctx context.Context, orderNumber string) (*DispenseUpdate, error)
}

// Renderer paints whichever screen the machine says is active. Rendering is
// a pure function of the session snapshot, never the reverse.
type Renderer interface {
	Render(snapshot domain.OrderSession)
}

// VerifyAgeCommand carries one verification attempt.
type VerifyAgeCommand struct {
	Token   string
	Method  domain.VerificationMethod
	Payload []byte
	Kind    domain.BeverageKind
}

type VerifyAgeResult struct {
	Verified     bool
	EstimatedAge int
	Message      string
}

// DispenseUpdate is one server-reported snapshot of a running pour.
type DispenseUpdate struct {
	Status          domain.PourStatus
	ProgressPercent int
	Message         string
}

// Terminal reports whether the update ends the pour.
func (u DispenseUpdate) Terminal() bool {
	return u.Status == domain.PourComplete || u.Status == domain.PourError || u.ProgressPercent >= 100
}

// Server-side service contracts.

// StateService owns the server copy of session projections.
type StateService interface {
	Save(ctx context.Context, proj SessionProjection) error
	Load(ctx context.Context, token string) (*SessionProjection, bool, error)
	MarkVerified(ctx context.Context, token string, estimatedAge int) error
}

// VerifyService decides a verification attempt.
type VerifyService interface {
	VerifyAge(ctx context.Context, cmd VerifyAgeCommand) (*VerifyAgeResult, error)
}

// PourService creates pour orders and exposes their progress.
type PourService interface {
	StartPour(ctx context.Context, cmd StartPourCommand) (*domain.PourOrder, error)
	GetPourStatus(ctx context.Context, orderNumber string) (*PourStatusResponse, error)
}

// TapService is the worker loop driving queued pours to completion.
type TapService interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	ProcessPour(ctx context.Context, msg PourJobMessage) error
}

// TrackingService reports pour history and station health.
type TrackingService interface {
	GetPourHistory(ctx context.Context, orderNumber string) ([]*domain.PourStatusLog, error)
	GetStationsStatus(ctx context.Context) ([]*StationStatusResponse, error)
}

type StartPourCommand struct {
	Token string
	Items []CartItemDTO
}

type PourStatusResponse struct {
	OrderNumber     string
	Status          domain.PourStatus
	ProgressPercent int
	Message         *string
	ProcessedBy     *string
	UpdatedAt       time.Time
}

type StationStatusResponse struct {
	StationName    string
	Status         domain.StationStatus
	PoursCompleted int
	LastSeen       time.Time
}
