package tracking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type fakePourRepo struct {
	order   *domain.PourOrder
	history []*domain.PourStatusLog
}

func (f *fakePourRepo) Create(ctx context.Context, order *domain.PourOrder) error { return nil }

func (f *fakePourRepo) FindByNumber(ctx context.Context, number string) (*domain.PourOrder, error) {
	if f.order == nil || f.order.Number != number {
		return nil, fmt.Errorf("pour order %s not found", number)
	}
	return f.order, nil
}

func (f *fakePourRepo) GenerateOrderNumber(ctx context.Context) (string, error) { return "", nil }

func (f *fakePourRepo) UpdateStatusWithLog(ctx context.Context, order *domain.PourOrder, changedBy string) error {
	return nil
}

func (f *fakePourRepo) HasActivePour(ctx context.Context, sessionToken string) (bool, error) {
	return false, nil
}

func (f *fakePourRepo) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.PourStatusLog, error) {
	return f.history, nil
}

type fakeStationRepo struct {
	stations []*domain.Station
}

func (f *fakeStationRepo) Create(ctx context.Context, station *domain.Station) error { return nil }

func (f *fakeStationRepo) FindByName(ctx context.Context, name string) (*domain.Station, error) {
	return nil, fmt.Errorf("not found")
}

func (f *fakeStationRepo) Update(ctx context.Context, station *domain.Station) error { return nil }

func (f *fakeStationRepo) UpdateHeartbeat(ctx context.Context, name string) error { return nil }

func (f *fakeStationRepo) ListAll(ctx context.Context) ([]*domain.Station, error) {
	return f.stations, nil
}

func (f *fakeStationRepo) IncrementPoursCompleted(ctx context.Context, name string) error {
	return nil
}

func TestGetPourHistory(t *testing.T) {
	order := &domain.PourOrder{ID: 7, Number: "POUR_20260901_001"}
	history := []*domain.PourStatusLog{
		{OrderID: 7, Status: domain.PourQueued, ChangedBy: "session-service"},
		{OrderID: 7, Status: domain.PourCup, ChangedBy: "tap-1"},
	}
	svc := NewService(&fakePourRepo{order: order, history: history}, &fakeStationRepo{}, logger.Noop())

	got, err := svc.GetPourHistory(context.Background(), "POUR_20260901_001")
	if err != nil {
		t.Fatalf("GetPourHistory: %v", err)
	}
	if len(got) != 2 || got[1].Status != domain.PourCup {
		t.Errorf("history = %+v", got)
	}

	if _, err := svc.GetPourHistory(context.Background(), "unknown"); err == nil {
		t.Error("unknown order number accepted")
	}
}

func TestGetStationsStatus(t *testing.T) {
	now := time.Now()
	stations := []*domain.Station{
		{Name: "tap-1", Status: domain.StationOnline, LastSeen: now, PoursCompleted: 12},
		{Name: "tap-2", Status: domain.StationOnline, LastSeen: now.Add(-5 * time.Minute)},
		{Name: "tap-3", Status: domain.StationOffline, LastSeen: now},
	}
	svc := NewService(&fakePourRepo{}, &fakeStationRepo{stations: stations}, logger.Noop())

	got, err := svc.GetStationsStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStationsStatus: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d stations", len(got))
	}

	byName := make(map[string]*interfaces.StationStatusResponse)
	for _, st := range got {
		byName[st.StationName] = st
	}
	if byName["tap-1"].Status != domain.StationOnline || byName["tap-1"].PoursCompleted != 12 {
		t.Errorf("tap-1 = %+v", byName["tap-1"])
	}
	// A stale heartbeat downgrades a nominally online station.
	if byName["tap-2"].Status != domain.StationOffline {
		t.Errorf("tap-2 status = %q, want offline", byName["tap-2"].Status)
	}
	if byName["tap-3"].Status != domain.StationOffline {
		t.Errorf("tap-3 status = %q, want offline", byName["tap-3"].Status)
	}
}
