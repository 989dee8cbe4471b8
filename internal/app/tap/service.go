package tap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Service is one tap station worker. It registers itself, heartbeats, and
// drives queued pour orders through the pour stages, logging and
// broadcasting every change.
type Service struct {
	pourRepo          interfaces.PourRepository
	stationRepo       interfaces.StationRepository
	publisher         interfaces.MessagePublisher
	logger            logger.Logger
	stationName       string
	kinds             []string
	heartbeatInterval time.Duration
}

func NewService(
	pourRepo interfaces.PourRepository,
	stationRepo interfaces.StationRepository,
	publisher interfaces.MessagePublisher,
	logger logger.Logger,
	stationName string,
	kinds string,
	heartbeatInterval int,
) *Service {
	var kindList []string
	if kinds != "" {
		kindList = strings.Split(kinds, ",")
	}

	return &Service{
		pourRepo:          pourRepo,
		stationRepo:       stationRepo,
		publisher:         publisher,
		logger:            logger,
		stationName:       stationName,
		kinds:             kindList,
		heartbeatInterval: time.Duration(heartbeatInterval) * time.Second,
	}
}

func (s *Service) Start(ctx context.Context) error {
	station, err := s.stationRepo.FindByName(ctx, s.stationName)
	if err == nil {
		if station.Status == domain.StationOnline {
			return fmt.Errorf("station %s is already online", s.stationName)
		}
		station.Status = domain.StationOnline
		station.LastSeen = time.Now()
		if err := s.stationRepo.Update(ctx, station); err != nil {
			return err
		}
	} else {
		kindStr := "general"
		if len(s.kinds) > 0 {
			kindStr = strings.Join(s.kinds, ",")
		}
		station, err = domain.NewStation(s.stationName, kindStr)
		if err != nil {
			return err
		}
		if err := s.stationRepo.Create(ctx, station); err != nil {
			return err
		}
	}

	s.logger.Info("station_registered", fmt.Sprintf("Station %s registered", s.stationName), "", nil)

	go s.heartbeatLoop(ctx)

	return nil
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.stationRepo.UpdateHeartbeat(ctx, s.stationName); err != nil {
				s.logger.Error("heartbeat_failed", "Failed to update heartbeat", "", nil, err)
			} else {
				s.logger.Debug("heartbeat_sent", "Heartbeat sent", "", nil)
			}
		}
	}
}

func (s *Service) Shutdown(ctx context.Context) error {
	station, err := s.stationRepo.FindByName(ctx, s.stationName)
	if err != nil {
		return err
	}
	station.SetOffline()
	return s.stationRepo.Update(ctx, station)
}

func (s *Service) ProcessPour(ctx context.Context, msg interfaces.PourJobMessage) error {
	if len(s.kinds) > 0 {
		for _, item := range msg.Items {
			if !s.supports(string(item.Kind)) {
				// The "cannot handle" prefix makes the consumer requeue for
				// another station instead of dead-lettering.
				return fmt.Errorf("station %s cannot handle beverage kind %s", s.stationName, item.Kind)
			}
		}
	}

	s.logger.Debug("pour_processing_started", fmt.Sprintf("Processing pour %s", msg.OrderNumber), "", map[string]interface{}{
		"order": msg.OrderNumber,
	})

	order, err := s.pourRepo.FindByNumber(ctx, msg.OrderNumber)
	if err != nil {
		return err
	}

	// Idempotency: a redelivered job for a pour already past queued is a
	// no-op.
	if order.Status != domain.PourQueued {
		return nil
	}

	stages := []domain.PourStatus{domain.PourCup, domain.PourPouring, domain.PourDelivering, domain.PourComplete}
	for _, stage := range stages {
		if stage != domain.PourComplete {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(order.StageTime(stage)):
			}
		}

		if err := s.updateStatusAndNotify(ctx, order, stage); err != nil {
			return err
		}
	}

	if err := s.stationRepo.IncrementPoursCompleted(ctx, s.stationName); err != nil {
		s.logger.Error("db_error", "Failed to increment station stats", "", nil, err)
	}

	s.logger.Debug("pour_completed", fmt.Sprintf("Pour %s completed", msg.OrderNumber), "", nil)
	return nil
}

func (s *Service) supports(kind string) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *Service) updateStatusAndNotify(ctx context.Context, order *domain.PourOrder, newStatus domain.PourStatus) error {
	oldStatus := order.Status

	if err := order.TransitionTo(newStatus, s.stationName); err != nil {
		return err
	}

	if err := s.pourRepo.UpdateStatusWithLog(ctx, order, s.stationName); err != nil {
		return fmt.Errorf("failed to update pour status: %w", err)
	}

	notification := interfaces.PourStatusMessage{
		OrderNumber:     order.Number,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
		ProgressPercent: order.ProgressPercent,
		ChangedBy:       s.stationName,
		Timestamp:       time.Now(),
	}

	if err := s.publisher.PublishPourStatus(ctx, notification); err != nil {
		// A lost notification must not block the pour.
		s.logger.Error("publish_failed", "Failed to publish status update", "", nil, err)
	}

	return nil
}
