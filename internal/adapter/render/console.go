package render

import (
	"fmt"

	"github.com/tapstand/kiosk/internal/domain"
)

// Console paints session snapshots as plain text, the stand-in renderer
// for headless and smoke-test runs. Rendering reads the snapshot only; it
// never mutates session state.
type Console struct{}

func NewConsole() *Console { return &Console{} }

func (c *Console) Render(snap domain.OrderSession) {
	fmt.Printf("== screen: %s\n", snap.Screen)

	if snap.Selection.Kind != "" {
		fmt.Printf("   selection: %s", snap.Selection.Kind)
		if snap.Selection.SizeMl != 0 {
			fmt.Printf(" %d ml", snap.Selection.SizeMl)
		}
		if snap.Selection.Quantity > 0 {
			fmt.Printf(" x%d", snap.Selection.Quantity)
		}
		fmt.Println()
	}

	for i, item := range snap.Cart {
		fmt.Printf("   cart[%d]: %s %d ml x%d = %s\n",
			i, item.Kind, item.SizeMl, item.Quantity, domain.FormatAmount(item.LineTotal()))
	}
	if len(snap.Cart) > 0 {
		fmt.Printf("   total: %s\n", domain.FormatAmount(snap.CartTotal()))
	}

	if snap.Dispensing != nil {
		fmt.Printf("   pour: %s (%d%%)", snap.Dispensing.Status, snap.Dispensing.ProgressPercent)
		if snap.Dispensing.Message != "" {
			fmt.Printf(" - %s", snap.Dispensing.Message)
		}
		fmt.Println()
	}

	if snap.LastError != "" {
		fmt.Printf("   !! %s\n", snap.LastError)
	}
}
