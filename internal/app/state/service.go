package state

import (
	"context"
	"fmt"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Service owns the server copy of session projections. Conflict policy is
// last writer wins; a single active client per token is assumed.
type Service struct {
	repo   interfaces.SessionRepository
	logger logger.Logger
}

func NewService(repo interfaces.SessionRepository, logger logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) Save(ctx context.Context, proj interfaces.SessionProjection) error {
	if err := proj.Validate(); err != nil {
		s.logger.Error("state_rejected", "Invalid session projection", proj.Token, nil, err)
		return fmt.Errorf("invalid session state: %w", err)
	}

	if err := s.repo.Upsert(ctx, proj); err != nil {
		s.logger.Error("db_error", "Failed to store session", proj.Token, nil, err)
		return err
	}

	s.logger.Debug("state_saved", "Session stored", proj.Token, map[string]interface{}{
		"screen":     string(proj.Screen),
		"cart_items": len(proj.Cart),
	})
	return nil
}

func (s *Service) Load(ctx context.Context, token string) (*interfaces.SessionProjection, bool, error) {
	if token == "" {
		return nil, false, fmt.Errorf("session token is required")
	}

	proj, found, err := s.repo.Find(ctx, token)
	if err != nil {
		s.logger.Error("db_error", "Failed to load session", token, nil, err)
		return nil, false, err
	}
	return proj, found, nil
}

func (s *Service) MarkVerified(ctx context.Context, token string, estimatedAge int) error {
	if err := s.repo.SetVerified(ctx, token, estimatedAge); err != nil {
		s.logger.Error("db_error", "Failed to mark session verified", token, nil, err)
		return err
	}
	return nil
}
