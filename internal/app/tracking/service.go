package tracking

import (
	"context"
	"time"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type Service struct {
	pourRepo    interfaces.PourRepository
	stationRepo interfaces.StationRepository
	logger      logger.Logger
}

func NewService(pourRepo interfaces.PourRepository, stationRepo interfaces.StationRepository, logger logger.Logger) *Service {
	return &Service{
		pourRepo:    pourRepo,
		stationRepo: stationRepo,
		logger:      logger,
	}
}

func (s *Service) GetPourHistory(ctx context.Context, orderNumber string) ([]*domain.PourStatusLog, error) {
	order, err := s.pourRepo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	return s.pourRepo.GetStatusHistory(ctx, order.ID)
}

func (s *Service) GetStationsStatus(ctx context.Context) ([]*interfaces.StationStatusResponse, error) {
	stations, err := s.stationRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	// Offline cutoff: two missed heartbeats.
	timeout := 60 * time.Second

	var resp []*interfaces.StationStatusResponse
	for _, st := range stations {
		status := st.Status
		if status == domain.StationOnline && time.Since(st.LastSeen) > timeout {
			status = domain.StationOffline
		}

		resp = append(resp, &interfaces.StationStatusResponse{
			StationName:    st.Name,
			Status:         status,
			PoursCompleted: st.PoursCompleted,
			LastSeen:       st.LastSeen,
		})
	}

	return resp, nil
}
