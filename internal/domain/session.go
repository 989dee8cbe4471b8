package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BeverageKind string

const (
	BeverageBeer   BeverageKind = "beer"
	BeverageKofola BeverageKind = "kofola"
	BeverageBirel  BeverageKind = "birel"
)

// KnownBeverage reports whether kind is one of the dispensable beverages.
func KnownBeverage(kind BeverageKind) bool {
	switch kind {
	case BeverageBeer, BeverageKofola, BeverageBirel:
		return true
	}
	return false
}

// ValidSize reports whether sizeMl is a pourable cup size.
func ValidSize(sizeMl int) bool {
	return sizeMl == 300 || sizeMl == 500
}

// CartItem is a committed order line. Immutable once added; the only
// mutation is removal from the cart.
type CartItem struct {
	Kind      BeverageKind    `json:"kind"`
	SizeMl    int             `json:"size_ml"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal is UnitPrice * Quantity, always recomputed, never stored.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Selection is the pending pick not yet committed to the cart.
// Zero values mean "not chosen yet".
type Selection struct {
	Kind     BeverageKind `json:"kind,omitempty"`
	SizeMl   int          `json:"size_ml,omitempty"`
	Quantity int          `json:"quantity,omitempty"`
}

type VerificationMethod string

const (
	VerifyByWebcam VerificationMethod = "webcam"
	VerifyByID     VerificationMethod = "id"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

type Verification struct {
	Method       VerificationMethod `json:"method"`
	Status       VerificationStatus `json:"status"`
	EstimatedAge int                `json:"estimated_age,omitempty"`
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Payment struct {
	Method string        `json:"method"`
	Status PaymentStatus `json:"status"`
}

type Dispensing struct {
	Status          PourStatus `json:"status"`
	ProgressPercent int        `json:"progress_percent"`
	Message         string     `json:"message,omitempty"`
}

// OrderSession is the root aggregate for one kiosk customer, the single
// source of truth mirrored to the server. Only the session machine mutates
// it.
type OrderSession struct {
	Token        string
	Cart         []CartItem
	Selection    Selection
	Screen       Screen
	Verification *Verification
	Payment      *Payment
	Dispensing   *Dispensing
	OrderNumber  string
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewOrderSession creates a fresh session at the beverage-type screen.
func NewOrderSession(token string) *OrderSession {
	now := time.Now()
	return &OrderSession{
		Token:     token,
		Screen:    ScreenBeverageType,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CartTotal is the sum of recomputed line totals.
func (s *OrderSession) CartTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Cart {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ContainsRestricted reports whether any cart line's kind is in the
// restricted set.
func (s *OrderSession) ContainsRestricted(restricted map[BeverageKind]bool) bool {
	for _, item := range s.Cart {
		if restricted[item.Kind] {
			return true
		}
	}
	return false
}

// IsVerified reports a successful age verification on this session.
func (s *OrderSession) IsVerified() bool {
	return s.Verification != nil && s.Verification.Status == VerificationVerified
}

// IsPaid reports a captured payment on this session.
func (s *OrderSession) IsPaid() bool {
	return s.Payment != nil && s.Payment.Status == PaymentPaid
}

// ScreenPrerequisite checks the fields required before target may become
// the active screen. The restricted set decides whether payment demands a
// prior verification. An empty reason means the prerequisite holds.
func (s *OrderSession) ScreenPrerequisite(target Screen, restricted map[BeverageKind]bool) string {
	switch target {
	case ScreenBeverageType:
		return ""
	case ScreenBeverageSize:
		if s.Selection.Kind == "" {
			return "selection.kind"
		}
	case ScreenQuantity:
		if s.Selection.Kind == "" || s.Selection.SizeMl == 0 {
			return "selection"
		}
	case ScreenCartReview:
		if len(s.Cart) == 0 && (s.Selection.Kind == "" || s.Selection.SizeMl == 0) {
			return "cart"
		}
	case ScreenAgeVerification:
		if len(s.Cart) == 0 {
			return "cart"
		}
	case ScreenPayment:
		if len(s.Cart) == 0 {
			return "cart"
		}
		if s.ContainsRestricted(restricted) && !s.IsVerified() {
			return "verification.status"
		}
	case ScreenDispensing:
		if !s.IsPaid() {
			return "payment.status"
		}
	case ScreenOrderComplete:
		if s.Dispensing == nil || s.Dispensing.Status != PourComplete {
			return "dispensing.status"
		}
	}
	return ""
}
