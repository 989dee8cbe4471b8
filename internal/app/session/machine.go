package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Config carries the ordering-flow knobs the machine enforces.
type Config struct {
	MaxQuantity int
	Restricted  map[domain.BeverageKind]bool
	Prices      domain.PriceTable

	// PullRetryBackoff is the wait before the second pull attempt in
	// Restore. Zero means the 2s default.
	PullRetryBackoff time.Duration
}

// Machine is the single owner of the OrderSession aggregate. Every mutation
// goes through one of its operations; after each one the session projection
// is pushed to the remote store. All methods must be called from a single
// goroutine (the kiosk event flow).
type Machine struct {
	cfg      Config
	store    interfaces.RemoteStateStore
	gateway  interfaces.DispenseGateway
	verifier interfaces.AgeVerifier
	logger   logger.Logger

	session    *domain.OrderSession
	generation int

	// onDispenseStarted lets the agent start a status poll for the new
	// order. The generation guards the callback against a reset racing a
	// late response.
	onDispenseStarted func(orderNumber string, generation int)
}

func NewMachine(
	token string,
	cfg Config,
	store interfaces.RemoteStateStore,
	gateway interfaces.DispenseGateway,
	verifier interfaces.AgeVerifier,
	lgr logger.Logger,
) *Machine {
	if cfg.MaxQuantity < 1 {
		cfg.MaxQuantity = 10
	}
	if cfg.Prices == nil {
		cfg.Prices = domain.DefaultPriceTable()
	}
	if cfg.PullRetryBackoff <= 0 {
		cfg.PullRetryBackoff = 2 * time.Second
	}
	if lgr == nil {
		lgr = logger.Noop()
	}

	return &Machine{
		cfg:      cfg,
		store:    store,
		gateway:  gateway,
		verifier: verifier,
		logger:   lgr,
		session:  domain.NewOrderSession(token),
	}
}

// OnDispenseStarted registers the callback invoked when a pour is accepted
// by the server.
func (m *Machine) OnDispenseStarted(fn func(orderNumber string, generation int)) {
	m.onDispenseStarted = fn
}

// Snapshot returns a copy of the session for rendering. The cart slice is
// copied so callers cannot mutate the aggregate.
func (m *Machine) Snapshot() domain.OrderSession {
	snap := *m.session
	snap.Cart = append([]domain.CartItem(nil), m.session.Cart...)
	return snap
}

// Generation identifies the current order attempt. It increments on every
// reset so stale network callbacks can be discarded.
func (m *Machine) Generation() int {
	return m.generation
}

// SelectBeverage records the pending beverage kind.
func (m *Machine) SelectBeverage(ctx context.Context, kind domain.BeverageKind) error {
	if !domain.KnownBeverage(kind) {
		return m.fail("select_beverage", fmt.Errorf("%w: beverage %q", domain.ErrInvalidSelection, kind))
	}

	m.session.Selection.Kind = kind
	if m.session.Selection.Quantity < 1 {
		m.session.Selection.Quantity = 1
	}
	m.pushState(ctx)
	return nil
}

// SelectSize records the pending cup size. A beverage must be chosen first.
func (m *Machine) SelectSize(ctx context.Context, sizeMl int) error {
	if m.session.Selection.Kind == "" {
		return m.fail("select_size", fmt.Errorf("%w: selection.kind", domain.ErrPrerequisiteNotMet))
	}
	if !domain.ValidSize(sizeMl) {
		return m.fail("select_size", fmt.Errorf("%w: size %d ml", domain.ErrInvalidSelection, sizeMl))
	}

	m.session.Selection.SizeMl = sizeMl
	m.pushState(ctx)
	return nil
}

// SetQuantity clamps n into [1, MaxQuantity]. Out-of-range input never
// fails, it clamps.
func (m *Machine) SetQuantity(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	if n > m.cfg.MaxQuantity {
		n = m.cfg.MaxQuantity
	}
	m.session.Selection.Quantity = n
	m.pushState(ctx)
}

// AddToCart commits the pending selection as a cart line. The cup size is
// cleared afterwards but the beverage kind is kept, so the customer can add
// another size of the same beverage without reselecting it.
func (m *Machine) AddToCart(ctx context.Context) error {
	sel := m.session.Selection
	if sel.Kind == "" || sel.SizeMl == 0 {
		return m.fail("add_to_cart", fmt.Errorf("%w: selection incomplete", domain.ErrPrerequisiteNotMet))
	}

	unitPrice, err := m.cfg.Prices.UnitPrice(sel.Kind, sel.SizeMl)
	if err != nil {
		return m.fail("add_to_cart", err)
	}

	quantity := sel.Quantity
	if quantity < 1 {
		quantity = 1
	}
	if quantity > m.cfg.MaxQuantity {
		quantity = m.cfg.MaxQuantity
	}

	m.session.Cart = append(m.session.Cart, domain.CartItem{
		Kind:      sel.Kind,
		SizeMl:    sel.SizeMl,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	})
	m.session.Selection.SizeMl = 0

	m.logger.Debug("cart_item_added", "Item added to cart", m.session.Token, map[string]interface{}{
		"kind":     string(sel.Kind),
		"size_ml":  sel.SizeMl,
		"quantity": quantity,
		"total":    domain.FormatAmount(m.session.CartTotal()),
	})
	m.pushState(ctx)
	return nil
}

// RemoveFromCart deletes the cart line at index, preserving the order of
// the remaining entries. A bad index leaves the cart untouched.
func (m *Machine) RemoveFromCart(ctx context.Context, index int) error {
	if index < 0 || index >= len(m.session.Cart) {
		return m.fail("remove_from_cart", fmt.Errorf("%w: index %d, cart size %d", domain.ErrIndexOutOfRange, index, len(m.session.Cart)))
	}

	m.session.Cart = append(m.session.Cart[:index], m.session.Cart[index+1:]...)
	m.pushState(ctx)
	return nil
}

// RequestScreenTransition validates target against the navigation table and
// the prerequisite fields, then makes it the active screen. On failure the
// screen is unchanged and the error names the missing field.
func (m *Machine) RequestScreenTransition(ctx context.Context, target domain.Screen) error {
	if !domain.KnownScreen(target) {
		return m.fail("screen_transition", fmt.Errorf("%w: screen %q", domain.ErrInvalidSelection, target))
	}
	if !domain.CanNavigate(m.session.Screen, target) {
		return m.fail("screen_transition", fmt.Errorf("%w: %s is not reachable from %s", domain.ErrPrerequisiteNotMet, target, m.session.Screen))
	}
	if missing := m.session.ScreenPrerequisite(target, m.cfg.Restricted); missing != "" {
		return m.fail("screen_transition", fmt.Errorf("%w: %s requires %s", domain.ErrPrerequisiteNotMet, target, missing))
	}

	m.session.Screen = target
	m.session.LastError = ""
	m.pushState(ctx)
	return nil
}

// BeginAgeVerification opens a verification attempt with the given method.
func (m *Machine) BeginAgeVerification(ctx context.Context, method domain.VerificationMethod) error {
	if len(m.session.Cart) == 0 {
		return m.fail("age_verification", fmt.Errorf("%w: cart", domain.ErrPrerequisiteNotMet))
	}

	m.session.Verification = &domain.Verification{
		Method: method,
		Status: domain.VerificationPending,
	}
	m.pushState(ctx)
	return nil
}

// VerifyAge submits the capture payload to the verifier and records the
// outcome. The webcam image or ID-form fields are opaque to the machine.
func (m *Machine) VerifyAge(ctx context.Context, payload []byte) error {
	if m.session.Verification == nil {
		return m.fail("age_verification", fmt.Errorf("%w: verification not started", domain.ErrPrerequisiteNotMet))
	}

	kind := firstRestrictedKind(m.session.Cart, m.cfg.Restricted)
	result, err := m.verifier.Verify(ctx, interfaces.VerifyAgeCommand{
		Token:   m.session.Token,
		Method:  m.session.Verification.Method,
		Payload: payload,
		Kind:    kind,
	})
	if err != nil {
		return m.fail("age_verification", fmt.Errorf("%w: %v", domain.ErrTransportFailure, err))
	}

	status := domain.VerificationFailed
	if result.Verified {
		status = domain.VerificationVerified
	}
	return m.RecordVerificationResult(ctx, status, result.EstimatedAge)
}

// RecordVerificationResult applies a verification outcome. A verified
// result while the verification screen is active advances to payment; a
// failed one keeps the screen so the customer can retry.
func (m *Machine) RecordVerificationResult(ctx context.Context, status domain.VerificationStatus, estimatedAge int) error {
	if m.session.Verification == nil {
		return m.fail("age_verification", fmt.Errorf("%w: verification not started", domain.ErrPrerequisiteNotMet))
	}

	m.session.Verification.Status = status
	m.session.Verification.EstimatedAge = estimatedAge

	switch status {
	case domain.VerificationVerified:
		m.session.LastError = ""
		if m.session.Screen == domain.ScreenAgeVerification {
			m.session.Screen = domain.ScreenPayment
		}
		m.pushState(ctx)
		return nil
	case domain.VerificationFailed:
		m.session.LastError = domain.ErrVerificationFailed.Error()
		m.logger.Warn("age_verification_failed", "Verification attempt failed", m.session.Token, map[string]interface{}{
			"estimated_age": estimatedAge,
		})
		m.pushState(ctx)
		return nil
	default:
		m.pushState(ctx)
		return nil
	}
}

// BeginPayment opens a payment attempt.
func (m *Machine) BeginPayment(ctx context.Context, method string) error {
	if len(m.session.Cart) == 0 {
		return m.fail("payment", fmt.Errorf("%w: cart", domain.ErrPrerequisiteNotMet))
	}
	if m.session.ContainsRestricted(m.cfg.Restricted) && !m.session.IsVerified() {
		return m.fail("payment", fmt.Errorf("%w: verification.status", domain.ErrPrerequisiteNotMet))
	}

	m.session.Payment = &domain.Payment{
		Method: method,
		Status: domain.PaymentPending,
	}
	m.pushState(ctx)
	return nil
}

// RecordPaymentResult applies a payment outcome. A paid result starts the
// pour and advances to the dispensing screen.
func (m *Machine) RecordPaymentResult(ctx context.Context, status domain.PaymentStatus) error {
	if m.session.Payment == nil {
		return m.fail("payment", fmt.Errorf("%w: payment not started", domain.ErrPrerequisiteNotMet))
	}

	m.session.Payment.Status = status

	switch status {
	case domain.PaymentPaid:
		m.session.LastError = ""
		return m.StartDispensing(ctx)
	case domain.PaymentFailed:
		m.session.LastError = domain.ErrPaymentFailed.Error()
		m.logger.Warn("payment_failed", "Payment attempt failed", m.session.Token, nil)
		m.pushState(ctx)
		return nil
	default:
		m.pushState(ctx)
		return nil
	}
}

// StartDispensing asks the server to start the pour. On success the order
// number is assigned, the dispensing screen becomes active and the
// registered poll callback fires. A 403-style rejection routes back to
// age-verification; the server is authoritative on whether verification is
// required.
func (m *Machine) StartDispensing(ctx context.Context) error {
	if !m.session.IsPaid() {
		return m.fail("dispense_start", fmt.Errorf("%w: payment.status", domain.ErrPrerequisiteNotMet))
	}
	if m.session.Dispensing != nil {
		return m.fail("dispense_start", fmt.Errorf("%w: dispensing already in flight", domain.ErrPrerequisiteNotMet))
	}

	items := interfaces.ProjectSession(m.session).Cart
	orderNumber, err := m.gateway.StartPour(ctx, m.session.Token, items)
	if err != nil {
		if errors.Is(err, domain.ErrVerificationRequired) {
			m.session.Verification = &domain.Verification{Status: domain.VerificationPending}
			m.session.Screen = domain.ScreenAgeVerification
			m.session.LastError = domain.ErrVerificationRequired.Error()
			m.logger.Info("verification_required", "Server rejected pour, verification required", m.session.Token, nil)
			m.pushState(ctx)
			return domain.ErrVerificationRequired
		}
		return m.fail("dispense_start", fmt.Errorf("%w: %v", domain.ErrTransportFailure, err))
	}

	m.session.OrderNumber = orderNumber
	m.session.Dispensing = &domain.Dispensing{
		Status:          domain.PourQueued,
		ProgressPercent: 0,
	}
	m.session.Screen = domain.ScreenDispensing
	m.logger.Info("dispense_started", "Pour accepted by server", m.session.Token, map[string]interface{}{
		"order_number": orderNumber,
	})
	m.pushState(ctx)

	if m.onDispenseStarted != nil {
		m.onDispenseStarted(orderNumber, m.generation)
	}
	return nil
}

// ApplyDispenseUpdate merges a server-reported pour snapshot. Updates from
// an older generation are discarded; re-applying the latest state is
// harmless. Returns true when the update is terminal and polling should
// stop.
func (m *Machine) ApplyDispenseUpdate(ctx context.Context, generation int, update interfaces.DispenseUpdate) bool {
	if generation != m.generation || m.session.Dispensing == nil {
		return true
	}
	if m.session.Screen == domain.ScreenOrderComplete {
		return true
	}

	m.session.Dispensing.Status = update.Status
	m.session.Dispensing.ProgressPercent = update.ProgressPercent
	m.session.Dispensing.Message = update.Message

	if update.Status == domain.PourError {
		m.session.LastError = domain.ErrDispenseFailed.Error()
		if update.Message != "" {
			m.session.LastError = update.Message
		}
		m.logger.Error("dispense_error", "Server reported pour failure", m.session.Token, map[string]interface{}{
			"order_number": m.session.OrderNumber,
		}, domain.ErrDispenseFailed)
		m.pushState(ctx)
		return true
	}

	if update.Status == domain.PourComplete || update.ProgressPercent >= 100 {
		m.session.Dispensing.Status = domain.PourComplete
		m.session.Dispensing.ProgressPercent = 100
		m.session.Screen = domain.ScreenOrderComplete
		m.session.Cart = nil
		m.logger.Info("order_complete", "Pour finished", m.session.Token, map[string]interface{}{
			"order_number": m.session.OrderNumber,
		})
		m.pushState(ctx)
		return true
	}

	m.pushState(ctx)
	return false
}

// ApplyDispenseTimeout records that the status poll gave up. Terminal for
// the current order, same staff-assistance messaging as a pour failure.
func (m *Machine) ApplyDispenseTimeout(ctx context.Context, generation int) {
	if generation != m.generation || m.session.Dispensing == nil {
		return
	}

	m.session.Dispensing.Status = domain.PourError
	m.session.Dispensing.Message = domain.ErrPollTimeout.Error()
	m.session.LastError = domain.ErrPollTimeout.Error()
	m.logger.Error("dispense_timeout", "Status poll exhausted", m.session.Token, map[string]interface{}{
		"order_number": m.session.OrderNumber,
	}, domain.ErrPollTimeout)
	m.pushState(ctx)
}

// ResetForNewOrder returns the session to the beverage-type screen and
// bumps the generation so in-flight responses for the old order are
// ignored. The cart is cleared unless keepCompletedCart asks to keep it.
func (m *Machine) ResetForNewOrder(ctx context.Context, keepCompletedCart bool) {
	m.generation++
	if !keepCompletedCart {
		m.session.Cart = nil
	}
	m.session.Selection = domain.Selection{}
	m.session.Verification = nil
	m.session.Payment = nil
	m.session.Dispensing = nil
	m.session.OrderNumber = ""
	m.session.LastError = ""
	m.session.Screen = domain.ScreenBeverageType

	m.logger.Info("session_reset", "Session reset for a new order", m.session.Token, nil)
	m.pushState(ctx)
}

// Restore pulls the last-known projection and re-enters the remembered
// screen. A failed pull is retried once after a backoff. If nothing is
// stored, the projection is malformed, or the remembered screen's
// prerequisites no longer hold, the session starts fresh at beverage-type.
func (m *Machine) Restore(ctx context.Context) error {
	proj, found, err := m.store.Pull(ctx, m.session.Token)
	if err != nil {
		m.logger.Warn("state_pull_failed", "Could not fetch stored session, retrying", m.session.Token, map[string]interface{}{
			"error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", domain.ErrTransportFailure, ctx.Err())
		case <-time.After(m.cfg.PullRetryBackoff):
		}
		proj, found, err = m.store.Pull(ctx, m.session.Token)
	}
	if err != nil {
		m.logger.Warn("state_pull_failed", "Could not fetch stored session", m.session.Token, map[string]interface{}{
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", domain.ErrTransportFailure, err)
	}
	if !found {
		return nil
	}
	if err := proj.Validate(); err != nil {
		m.logger.Warn("state_malformed", "Stored session rejected, starting fresh", m.session.Token, map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	cart := make([]domain.CartItem, 0, len(proj.Cart))
	for _, dto := range proj.Cart {
		unitPrice, perr := decimal.NewFromString(dto.UnitPrice)
		if perr != nil {
			m.logger.Warn("state_malformed", "Stored cart price rejected, starting fresh", m.session.Token, nil)
			return nil
		}
		cart = append(cart, domain.CartItem{
			Kind:      dto.Kind,
			SizeMl:    dto.SizeMl,
			Quantity:  dto.Quantity,
			UnitPrice: unitPrice,
		})
	}

	m.session.Cart = cart
	m.session.Selection = proj.Selection
	if proj.Verified {
		m.session.Verification = &domain.Verification{Status: domain.VerificationVerified}
	}

	if missing := m.session.ScreenPrerequisite(proj.Screen, m.cfg.Restricted); missing != "" {
		m.session.Screen = domain.ScreenBeverageType
	} else {
		m.session.Screen = proj.Screen
	}
	m.pushState(ctx)
	return nil
}

// fail records the error on the session for the renderer and logs it. The
// session state is otherwise untouched.
func (m *Machine) fail(action string, err error) error {
	m.session.LastError = err.Error()
	m.logger.Error(action, "Operation rejected", m.session.Token, nil, err)
	return err
}

// pushState mirrors the session to the server. One retry, then a warning;
// a sync failure never fails the triggering operation.
func (m *Machine) pushState(ctx context.Context) {
	m.session.UpdatedAt = time.Now()
	proj := interfaces.ProjectSession(m.session)

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = m.store.Push(ctx, proj); err == nil {
			return
		}
	}
	m.logger.Warn("state_push_failed", "Session sync failed, continuing", m.session.Token, map[string]interface{}{
		"error": err.Error(),
	})
}

func firstRestrictedKind(cart []domain.CartItem, restricted map[domain.BeverageKind]bool) domain.BeverageKind {
	for _, item := range cart {
		if restricted[item.Kind] {
			return item.Kind
		}
	}
	if len(cart) > 0 {
		return cart[0].Kind
	}
	return ""
}
