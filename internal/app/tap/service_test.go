package tap

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type fakePourRepo struct {
	orders  map[string]*domain.PourOrder
	updates []domain.PourStatus
}

func (f *fakePourRepo) Create(ctx context.Context, order *domain.PourOrder) error { return nil }

func (f *fakePourRepo) FindByNumber(ctx context.Context, number string) (*domain.PourOrder, error) {
	order, ok := f.orders[number]
	if !ok {
		return nil, fmt.Errorf("pour order %s not found", number)
	}
	return order, nil
}

func (f *fakePourRepo) GenerateOrderNumber(ctx context.Context) (string, error) {
	return "POUR_20260901_001", nil
}

func (f *fakePourRepo) UpdateStatusWithLog(ctx context.Context, order *domain.PourOrder, changedBy string) error {
	f.updates = append(f.updates, order.Status)
	return nil
}

func (f *fakePourRepo) HasActivePour(ctx context.Context, sessionToken string) (bool, error) {
	return false, nil
}

func (f *fakePourRepo) GetStatusHistory(ctx context.Context, orderID int) ([]*domain.PourStatusLog, error) {
	return nil, nil
}

type fakeStationRepo struct {
	stations map[string]*domain.Station
}

func (f *fakeStationRepo) Create(ctx context.Context, station *domain.Station) error {
	f.stations[station.Name] = station
	return nil
}

func (f *fakeStationRepo) FindByName(ctx context.Context, name string) (*domain.Station, error) {
	station, ok := f.stations[name]
	if !ok {
		return nil, fmt.Errorf("station %s not found", name)
	}
	return station, nil
}

func (f *fakeStationRepo) Update(ctx context.Context, station *domain.Station) error {
	f.stations[station.Name] = station
	return nil
}

func (f *fakeStationRepo) UpdateHeartbeat(ctx context.Context, name string) error { return nil }

func (f *fakeStationRepo) ListAll(ctx context.Context) ([]*domain.Station, error) { return nil, nil }

func (f *fakeStationRepo) IncrementPoursCompleted(ctx context.Context, name string) error {
	if station, ok := f.stations[name]; ok {
		station.PoursCompleted++
	}
	return nil
}

type fakePublisher struct {
	statuses []interfaces.PourStatusMessage
}

func (f *fakePublisher) PublishPourJob(ctx context.Context, msg interfaces.PourJobMessage) error {
	return nil
}

func (f *fakePublisher) PublishPourStatus(ctx context.Context, msg interfaces.PourStatusMessage) error {
	f.statuses = append(f.statuses, msg)
	return nil
}

func newTestService(pours *fakePourRepo, stations *fakeStationRepo, kinds string) *Service {
	return NewService(pours, stations, &fakePublisher{}, logger.Noop(), "tap-1", kinds, 30)
}

func TestStartRegistersStation(t *testing.T) {
	stations := &fakeStationRepo{stations: map[string]*domain.Station{}}
	svc := newTestService(&fakePourRepo{}, stations, "beer")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	station, ok := stations.stations["tap-1"]
	if !ok {
		t.Fatal("station not registered")
	}
	if station.Status != domain.StationOnline {
		t.Errorf("station status = %q, want online", station.Status)
	}
}

func TestStartRejectsSecondOnlineInstance(t *testing.T) {
	stations := &fakeStationRepo{stations: map[string]*domain.Station{}}
	svc := newTestService(&fakePourRepo{}, stations, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second := newTestService(&fakePourRepo{}, stations, "")
	if err := second.Start(ctx); err == nil {
		t.Fatal("second instance under the same name accepted")
	}
}

func TestShutdownMarksOffline(t *testing.T) {
	stations := &fakeStationRepo{stations: map[string]*domain.Station{}}
	svc := newTestService(&fakePourRepo{}, stations, "")

	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()

	if err := svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if got := stations.stations["tap-1"].Status; got != domain.StationOffline {
		t.Errorf("station status = %q, want offline", got)
	}
}

func TestProcessPourRejectsUnsupportedKind(t *testing.T) {
	svc := newTestService(&fakePourRepo{}, &fakeStationRepo{stations: map[string]*domain.Station{}}, "kofola,birel")

	err := svc.ProcessPour(context.Background(), interfaces.PourJobMessage{
		OrderNumber: "POUR_20260901_001",
		Items:       []interfaces.PourItemMsg{{Kind: domain.BeverageBeer, SizeMl: 500, Quantity: 1}},
	})
	if err == nil {
		t.Fatal("beer job accepted by a kofola station")
	}
	if !strings.Contains(err.Error(), "cannot handle beverage kind") {
		t.Errorf("error %q should carry the requeue marker", err)
	}
}

func TestProcessPourIgnoresRedelivery(t *testing.T) {
	order, err := domain.NewPourOrder("kiosk-1", []domain.PourItem{
		{Kind: domain.BeverageKofola, SizeMl: 300, Quantity: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	order.Number = "POUR_20260901_001"
	if err := order.TransitionTo(domain.PourCup, "tap-1"); err != nil {
		t.Fatal(err)
	}

	pours := &fakePourRepo{orders: map[string]*domain.PourOrder{order.Number: order}}
	svc := newTestService(pours, &fakeStationRepo{stations: map[string]*domain.Station{}}, "")

	if err := svc.ProcessPour(context.Background(), interfaces.PourJobMessage{OrderNumber: order.Number}); err != nil {
		t.Fatalf("redelivered job should be a no-op, got %v", err)
	}
	if len(pours.updates) != 0 {
		t.Errorf("redelivery caused %d status updates", len(pours.updates))
	}
}

func TestProcessPourStopsOnCancel(t *testing.T) {
	order, err := domain.NewPourOrder("kiosk-1", []domain.PourItem{
		{Kind: domain.BeverageKofola, SizeMl: 300, Quantity: 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	order.Number = "POUR_20260901_002"

	pours := &fakePourRepo{orders: map[string]*domain.PourOrder{order.Number: order}}
	svc := newTestService(pours, &fakeStationRepo{stations: map[string]*domain.Station{}}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.ProcessPour(ctx, interfaces.PourJobMessage{OrderNumber: order.Number}); err != context.Canceled {
		t.Fatalf("ProcessPour on a cancelled context = %v, want context.Canceled", err)
	}
	if len(pours.updates) != 0 {
		t.Errorf("cancelled pour made %d status updates", len(pours.updates))
	}
}
