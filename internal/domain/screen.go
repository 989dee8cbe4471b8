package domain

type Screen string

const (
	ScreenBeverageType    Screen = "beverage-type"
	ScreenBeverageSize    Screen = "beverage-size"
	ScreenQuantity        Screen = "quantity"
	ScreenCartReview      Screen = "cart-review"
	ScreenAgeVerification Screen = "age-verification"
	ScreenPayment         Screen = "payment"
	ScreenDispensing      Screen = "dispensing"
	ScreenOrderComplete   Screen = "order-complete"
)

// screenTransitions lists the legal navigation edges. Forward edges follow
// the natural ordering flow; backward edges are only allowed before
// dispensing starts. payment -> age-verification covers the server rejecting
// a pour for a restricted beverage.
var screenTransitions = map[Screen][]Screen{
	ScreenBeverageType:    {ScreenBeverageSize},
	ScreenBeverageSize:    {ScreenBeverageType, ScreenQuantity, ScreenCartReview},
	ScreenQuantity:        {ScreenBeverageSize, ScreenCartReview},
	ScreenCartReview:      {ScreenBeverageType, ScreenBeverageSize, ScreenAgeVerification, ScreenPayment},
	ScreenAgeVerification: {ScreenCartReview, ScreenPayment},
	ScreenPayment:         {ScreenAgeVerification, ScreenDispensing},
	ScreenDispensing:      {ScreenOrderComplete},
	ScreenOrderComplete:   {},
}

// KnownScreen reports whether s is a valid screen identifier.
func KnownScreen(s Screen) bool {
	_, ok := screenTransitions[s]
	return ok
}

// CanNavigate checks if the edge from -> to exists in the transition table.
func CanNavigate(from, to Screen) bool {
	for _, s := range screenTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
