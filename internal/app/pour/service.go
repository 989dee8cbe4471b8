package pour

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Service creates pour orders and hands them to the tap workers. It is the
// authority on whether a cart needs age verification: a restricted cart on
// an unverified session is rejected with domain.ErrVerificationRequired.
type Service struct {
	repo       interfaces.PourRepository
	sessions   interfaces.SessionRepository
	publisher  interfaces.MessagePublisher
	logger     logger.Logger
	restricted map[domain.BeverageKind]bool
}

func NewService(
	repo interfaces.PourRepository,
	sessions interfaces.SessionRepository,
	publisher interfaces.MessagePublisher,
	logger logger.Logger,
	restricted map[domain.BeverageKind]bool,
) *Service {
	return &Service{
		repo:       repo,
		sessions:   sessions,
		publisher:  publisher,
		logger:     logger,
		restricted: restricted,
	}
}

func (s *Service) StartPour(ctx context.Context, cmd interfaces.StartPourCommand) (*domain.PourOrder, error) {
	if cmd.Token == "" {
		return nil, fmt.Errorf("session token is required")
	}
	if len(cmd.Items) == 0 {
		return nil, fmt.Errorf("pour requires at least one item")
	}

	if err := s.checkVerification(ctx, cmd); err != nil {
		return nil, err
	}

	active, err := s.repo.HasActivePour(ctx, cmd.Token)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("session %s already has a pour in flight", cmd.Token)
	}

	items := make([]domain.PourItem, len(cmd.Items))
	for i, dto := range cmd.Items {
		unitPrice, perr := decimal.NewFromString(dto.UnitPrice)
		if perr != nil {
			return nil, fmt.Errorf("items[%d]: invalid unit price %q", i, dto.UnitPrice)
		}
		items[i] = domain.PourItem{
			Kind:      dto.Kind,
			SizeMl:    dto.SizeMl,
			Quantity:  dto.Quantity,
			UnitPrice: unitPrice,
		}
	}

	order, err := domain.NewPourOrder(cmd.Token, items)
	if err != nil {
		s.logger.Error("validation_failed", "Pour order validation failed", cmd.Token, nil, err)
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	number, err := s.repo.GenerateOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate order number: %w", err)
	}
	order.Number = number

	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("db_transaction_failed", "Failed to create pour order", cmd.Token, nil, err)
		return nil, err
	}
	s.logger.Debug("pour_created", "Pour order created", cmd.Token, map[string]interface{}{
		"order_number": order.Number,
		"total":        domain.FormatAmount(order.TotalAmount),
	})

	msg := interfaces.PourJobMessage{
		OrderNumber:  order.Number,
		SessionToken: order.SessionToken,
		TotalAmount:  domain.FormatAmount(order.TotalAmount),
		Items:        make([]interfaces.PourItemMsg, len(order.Items)),
	}
	for i, item := range order.Items {
		msg.Items[i] = interfaces.PourItemMsg{
			Kind:      item.Kind,
			SizeMl:    item.SizeMl,
			Quantity:  item.Quantity,
			UnitPrice: domain.FormatAmount(item.UnitPrice),
		}
	}

	if err := s.publisher.PublishPourJob(ctx, msg); err != nil {
		s.logger.Error("publish_failed", "Failed to queue pour job", cmd.Token, nil, err)
		return nil, err
	}
	s.logger.Debug("pour_queued", "Pour job queued for tap workers", cmd.Token, map[string]interface{}{
		"order_number": order.Number,
	})

	return order, nil
}

func (s *Service) GetPourStatus(ctx context.Context, orderNumber string) (*interfaces.PourStatusResponse, error) {
	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	return &interfaces.PourStatusResponse{
		OrderNumber:     order.Number,
		Status:          order.Status,
		ProgressPercent: order.ProgressPercent,
		Message:         order.Message,
		ProcessedBy:     order.ProcessedBy,
		UpdatedAt:       order.UpdatedAt,
	}, nil
}

// checkVerification enforces the per-item restriction rule against the
// stored session's verified flag.
func (s *Service) checkVerification(ctx context.Context, cmd interfaces.StartPourCommand) error {
	needed := false
	for _, item := range cmd.Items {
		if s.restricted[item.Kind] {
			needed = true
			break
		}
	}
	if !needed {
		return nil
	}

	proj, found, err := s.sessions.Find(ctx, cmd.Token)
	if err != nil {
		return err
	}
	if !found || !proj.Verified {
		s.logger.Info("pour_rejected", "Restricted cart without verification", cmd.Token, nil)
		return domain.ErrVerificationRequired
	}
	return nil
}
