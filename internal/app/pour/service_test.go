package pour

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type fakePourRepo struct {
	created    []*domain.PourOrder
	active     bool
	nextNumber string
}

func (f *fakePourRepo) Create(ctx context.Context, order *domain.PourOrder) error {
	f.created = append(f.created, order)
	return nil
}

func (f *fakePourRepo) FindByNumber(ctx context.Context, number string) (*domain.PourOrder, error) {
	for _, order := range f.created {
		if order.Number == number {
			return order, nil
		}
	}
	return nil, fmt.Errorf("pour order %s not found", number)
}

func (f *fakePourRepo) GenerateOrderNumber(ctx context.Context) (string, error) {
	if f.nextNumber == "" {
		return "POUR_20260901_001", nil
	}
	return f.nextNumber, nil
}

func (f *fakePourRepo) UpdateStatusWithLog(ctx context.Context, order *domain.PourOrder, changedBy string) error {
	return nil
}

func (f *fakePourRepo) HasActivePour(ctx context.Context, sessionToken string) (bool, error) {
	return f.active, nil
}

func (f *fakePourRepo) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.PourStatusLog, error) {
	return nil, nil
}

type fakeSessionRepo struct {
	projections map[string]*interfaces.SessionProjection
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, proj interfaces.SessionProjection) error {
	// Mirrors the real store: a pushed projection never carries verification.
	proj.Verified = false
	if f.projections == nil {
		f.projections = make(map[string]*interfaces.SessionProjection)
	}
	f.projections[proj.Token] = &proj
	return nil
}

func (f *fakeSessionRepo) Find(ctx context.Context, token string) (*interfaces.SessionProjection, bool, error) {
	proj, ok := f.projections[token]
	return proj, ok, nil
}

func (f *fakeSessionRepo) SetVerified(ctx context.Context, token string, estimatedAge int) error {
	proj, ok := f.projections[token]
	if !ok {
		return fmt.Errorf("session %s not found", token)
	}
	proj.Verified = true
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, token string) error {
	return nil
}

type fakePublisher struct {
	jobs     []interfaces.PourJobMessage
	statuses []interfaces.PourStatusMessage
	err      error
}

func (f *fakePublisher) PublishPourJob(ctx context.Context, msg interfaces.PourJobMessage) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, msg)
	return nil
}

func (f *fakePublisher) PublishPourStatus(ctx context.Context, msg interfaces.PourStatusMessage) error {
	f.statuses = append(f.statuses, msg)
	return nil
}

var restricted = map[domain.BeverageKind]bool{domain.BeverageBeer: true}

func kofolaItems() []interfaces.CartItemDTO {
	return []interfaces.CartItemDTO{
		{Kind: domain.BeverageKofola, SizeMl: 300, Quantity: 2, UnitPrice: "1.40"},
	}
}

func beerItems() []interfaces.CartItemDTO {
	return []interfaces.CartItemDTO{
		{Kind: domain.BeverageBeer, SizeMl: 500, Quantity: 1, UnitPrice: "3.00"},
	}
}

func TestStartPour(t *testing.T) {
	repo := &fakePourRepo{}
	sessions := &fakeSessionRepo{}
	publisher := &fakePublisher{}
	svc := NewService(repo, sessions, publisher, logger.Noop(), restricted)

	order, err := svc.StartPour(context.Background(), interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: kofolaItems(),
	})
	if err != nil {
		t.Fatalf("StartPour: %v", err)
	}
	if order.Number != "POUR_20260901_001" {
		t.Errorf("order number = %q", order.Number)
	}
	if order.Status != domain.PourQueued {
		t.Errorf("status = %q, want queued", order.Status)
	}
	if got := domain.FormatAmount(order.TotalAmount); got != "2.80" {
		t.Errorf("total = %s, want 2.80", got)
	}
	if len(repo.created) != 1 {
		t.Fatalf("created %d orders", len(repo.created))
	}
	if len(publisher.jobs) != 1 {
		t.Fatalf("published %d jobs", len(publisher.jobs))
	}
	job := publisher.jobs[0]
	if job.OrderNumber != order.Number || len(job.Items) != 1 || job.Items[0].Kind != domain.BeverageKofola {
		t.Errorf("job = %+v", job)
	}
}

func TestStartPourRejectsUnverifiedRestrictedCart(t *testing.T) {
	tests := []struct {
		name     string
		sessions map[string]*interfaces.SessionProjection
		wantErr  bool
	}{
		{name: "noStoredSession", sessions: nil, wantErr: true},
		{
			name: "storedButUnverified",
			sessions: map[string]*interfaces.SessionProjection{
				"kiosk-1": {Token: "kiosk-1", Screen: domain.ScreenPayment},
			},
			wantErr: true,
		},
		{
			name: "verified",
			sessions: map[string]*interfaces.SessionProjection{
				"kiosk-1": {Token: "kiosk-1", Screen: domain.ScreenPayment, Verified: true},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakePourRepo{}, &fakeSessionRepo{projections: tt.sessions}, &fakePublisher{}, logger.Noop(), restricted)

			_, err := svc.StartPour(context.Background(), interfaces.StartPourCommand{
				Token: "kiosk-1",
				Items: beerItems(),
			})
			if tt.wantErr && !errors.Is(err, domain.ErrVerificationRequired) {
				t.Errorf("StartPour = %v, want ErrVerificationRequired", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("StartPour: %v", err)
			}
		})
	}
}

func TestForgedStatePushCannotUnlockRestrictedPour(t *testing.T) {
	sessions := &fakeSessionRepo{}
	svc := NewService(&fakePourRepo{}, sessions, &fakePublisher{}, logger.Noop(), restricted)
	ctx := context.Background()

	// A client pushing a projection with the verified bit set must not
	// unlock restricted pours; only a recorded verification does.
	forged := interfaces.SessionProjection{Token: "kiosk-1", Screen: domain.ScreenPayment, Verified: true}
	if err := sessions.Upsert(ctx, forged); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	_, err := svc.StartPour(ctx, interfaces.StartPourCommand{Token: "kiosk-1", Items: beerItems()})
	if !errors.Is(err, domain.ErrVerificationRequired) {
		t.Fatalf("StartPour after forged push = %v, want ErrVerificationRequired", err)
	}

	if err := sessions.SetVerified(ctx, "kiosk-1", 25); err != nil {
		t.Fatalf("SetVerified: %v", err)
	}
	if _, err := svc.StartPour(ctx, interfaces.StartPourCommand{Token: "kiosk-1", Items: beerItems()}); err != nil {
		t.Fatalf("StartPour after verification: %v", err)
	}
}

func TestStartPourUnrestrictedSkipsVerification(t *testing.T) {
	// No stored session at all; a kofola-only cart still pours.
	svc := NewService(&fakePourRepo{}, &fakeSessionRepo{}, &fakePublisher{}, logger.Noop(), restricted)

	if _, err := svc.StartPour(context.Background(), interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: kofolaItems(),
	}); err != nil {
		t.Fatalf("StartPour: %v", err)
	}
}

func TestStartPourRejectsSecondActivePour(t *testing.T) {
	svc := NewService(&fakePourRepo{active: true}, &fakeSessionRepo{}, &fakePublisher{}, logger.Noop(), restricted)

	_, err := svc.StartPour(context.Background(), interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: kofolaItems(),
	})
	if err == nil {
		t.Fatal("second pour for the same session accepted")
	}
}

func TestStartPourValidatesInput(t *testing.T) {
	svc := NewService(&fakePourRepo{}, &fakeSessionRepo{}, &fakePublisher{}, logger.Noop(), restricted)
	ctx := context.Background()

	if _, err := svc.StartPour(ctx, interfaces.StartPourCommand{Items: kofolaItems()}); err == nil {
		t.Error("missing token accepted")
	}
	if _, err := svc.StartPour(ctx, interfaces.StartPourCommand{Token: "kiosk-1"}); err == nil {
		t.Error("empty cart accepted")
	}
	if _, err := svc.StartPour(ctx, interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: []interfaces.CartItemDTO{{Kind: domain.BeverageKofola, SizeMl: 300, Quantity: 1, UnitPrice: "free"}},
	}); err == nil {
		t.Error("unparseable unit price accepted")
	}
	if _, err := svc.StartPour(ctx, interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: []interfaces.CartItemDTO{{Kind: "wine", SizeMl: 300, Quantity: 1, UnitPrice: "2.00"}},
	}); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("unknown kind = %v, want ErrInvalidSelection", err)
	}
}

func TestGetPourStatus(t *testing.T) {
	repo := &fakePourRepo{}
	svc := NewService(repo, &fakeSessionRepo{}, &fakePublisher{}, logger.Noop(), restricted)

	order, err := svc.StartPour(context.Background(), interfaces.StartPourCommand{
		Token: "kiosk-1",
		Items: kofolaItems(),
	})
	if err != nil {
		t.Fatal(err)
	}

	status, err := svc.GetPourStatus(context.Background(), order.Number)
	if err != nil {
		t.Fatalf("GetPourStatus: %v", err)
	}
	if status.OrderNumber != order.Number || status.Status != domain.PourQueued {
		t.Errorf("status = %+v", status)
	}

	if _, err := svc.GetPourStatus(context.Background(), "POUR_19990101_999"); err == nil {
		t.Error("unknown order number accepted")
	}
}
