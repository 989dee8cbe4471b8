package interfaces

import (
	"fmt"

	"github.com/tapstand/kiosk/internal/domain"
)

// SessionProjection is the wire shape of an OrderSession, the subset pushed
// to and pulled from the session service. Round-tripping a projection
// through JSON yields an identical projection.
type SessionProjection struct {
	Token     string           `json:"token"`
	Screen    domain.Screen    `json:"screen"`
	Cart      []CartItemDTO    `json:"cart"`
	Selection domain.Selection `json:"selection"`
	Verified  bool             `json:"verified,omitempty"`
}

type CartItemDTO struct {
	Kind      domain.BeverageKind `json:"kind"`
	SizeMl    int                 `json:"size_ml"`
	Quantity  int                 `json:"quantity"`
	UnitPrice string              `json:"unit_price"`
}

// ProjectSession builds a projection from the session aggregate.
func ProjectSession(s *domain.OrderSession) SessionProjection {
	proj := SessionProjection{
		Token:     s.Token,
		Screen:    s.Screen,
		Selection: s.Selection,
		Verified:  s.IsVerified(),
		Cart:      make([]CartItemDTO, 0, len(s.Cart)),
	}
	for _, item := range s.Cart {
		proj.Cart = append(proj.Cart, CartItemDTO{
			Kind:      item.Kind,
			SizeMl:    item.SizeMl,
			Quantity:  item.Quantity,
			UnitPrice: domain.FormatAmount(item.UnitPrice),
		})
	}
	return proj
}

// Validate rejects projections with unknown screens, kinds or sizes before
// they reach the store or rehydrate a session.
func (p SessionProjection) Validate() error {
	if p.Token == "" {
		return fmt.Errorf("session token is required")
	}
	if !domain.KnownScreen(p.Screen) {
		return fmt.Errorf("unknown screen %q", p.Screen)
	}
	for i, item := range p.Cart {
		if !domain.KnownBeverage(item.Kind) {
			return fmt.Errorf("cart[%d]: unknown beverage kind %q", i, item.Kind)
		}
		if !domain.ValidSize(item.SizeMl) {
			return fmt.Errorf("cart[%d]: invalid size %d", i, item.SizeMl)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("cart[%d]: quantity must be at least 1", i)
		}
	}
	if p.Selection.Kind != "" && !domain.KnownBeverage(p.Selection.Kind) {
		return fmt.Errorf("selection: unknown beverage kind %q", p.Selection.Kind)
	}
	if p.Selection.SizeMl != 0 && !domain.ValidSize(p.Selection.SizeMl) {
		return fmt.Errorf("selection: invalid size %d", p.Selection.SizeMl)
	}
	return nil
}
