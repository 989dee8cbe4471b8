package verify

import (
	"context"
	"fmt"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// LegalAge is the minimum age for restricted beverages.
const LegalAge = 18

// Estimator guesses a customer's age from the submitted payload (webcam
// frame or ID-form fields). The real model lives elsewhere; the shipped
// implementation is a deterministic stand-in.
type Estimator interface {
	Estimate(ctx context.Context, method domain.VerificationMethod, payload []byte) (int, error)
}

// Service decides age-verification attempts and records successful ones on
// the session.
type Service struct {
	estimator Estimator
	states    interfaces.StateService
	logger    logger.Logger
}

func NewService(estimator Estimator, states interfaces.StateService, logger logger.Logger) *Service {
	return &Service{
		estimator: estimator,
		states:    states,
		logger:    logger,
	}
}

func (s *Service) VerifyAge(ctx context.Context, cmd interfaces.VerifyAgeCommand) (*interfaces.VerifyAgeResult, error) {
	if cmd.Token == "" {
		return nil, fmt.Errorf("session token is required")
	}
	if cmd.Method != domain.VerifyByWebcam && cmd.Method != domain.VerifyByID {
		return nil, fmt.Errorf("unknown verification method %q", cmd.Method)
	}
	if len(cmd.Payload) == 0 {
		return nil, fmt.Errorf("verification payload is required")
	}

	age, err := s.estimator.Estimate(ctx, cmd.Method, cmd.Payload)
	if err != nil {
		s.logger.Error("age_estimation_failed", "Estimator rejected payload", cmd.Token, nil, err)
		return nil, err
	}

	result := &interfaces.VerifyAgeResult{EstimatedAge: age}
	if age >= LegalAge {
		result.Verified = true
		if err := s.states.MarkVerified(ctx, cmd.Token, age); err != nil {
			return nil, err
		}
		s.logger.Info("age_verified", "Session verified", cmd.Token, map[string]interface{}{
			"method":        string(cmd.Method),
			"estimated_age": age,
		})
	} else {
		result.Message = fmt.Sprintf("estimated age %d is below %d", age, LegalAge)
		s.logger.Warn("age_rejected", "Verification attempt below legal age", cmd.Token, map[string]interface{}{
			"method":        string(cmd.Method),
			"estimated_age": age,
		})
	}

	return result, nil
}
