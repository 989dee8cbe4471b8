package domain

import "github.com/shopspring/decimal"

// PriceTable maps beverage kind and cup size to a unit price. Pricing is a
// pure lookup; unit prices never depend on session state.
type PriceTable map[BeverageKind]map[int]decimal.Decimal

// DefaultPriceTable holds the shipped prices. The 500 ml price is 1.5x the
// 300 ml base for every kind.
func DefaultPriceTable() PriceTable {
	base := map[BeverageKind]string{
		BeverageBeer:   "2.00",
		BeverageKofola: "1.40",
		BeverageBirel:  "1.80",
	}
	ratio := decimal.RequireFromString("1.5")

	table := make(PriceTable, len(base))
	for kind, price := range base {
		p := decimal.RequireFromString(price)
		table[kind] = map[int]decimal.Decimal{
			300: p,
			500: p.Mul(ratio),
		}
	}
	return table
}

// UnitPrice returns the price for one cup of the given kind and size.
func (t PriceTable) UnitPrice(kind BeverageKind, sizeMl int) (decimal.Decimal, error) {
	sizes, ok := t[kind]
	if !ok {
		return decimal.Zero, ErrInvalidSelection
	}
	price, ok := sizes[sizeMl]
	if !ok {
		return decimal.Zero, ErrInvalidSelection
	}
	return price, nil
}

// FormatAmount renders a currency amount with two decimal places.
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
