package checkout

import "fmt"

// Price is a whole-euro amount. It is formatted only when shown to a user.
type Price int64

func (p Price) String() string {
	return fmt.Sprintf("%d€", int64(p))
}

// MinorUnits returns the amount in cents.
func (p Price) MinorUnits() int64 {
	return int64(p) * 100
}

type tierPrice struct {
	Manual    Price
	Automatic Price
}

// course prices; unknown categories are billed as category A
var priceTable = map[Category]tierPrice{
	CategoryA: {Manual: 570, Automatic: 570},
	CategoryB: {Manual: 700, Automatic: 840},
	CategoryC: {Manual: 150, Automatic: 150},
}

// ResolvePrice maps a category and transmission to the course price. It never
// fails: an unrecognized category silently falls back to category A.
func ResolvePrice(category Category, transmission Transmission) Price {
	tier, ok := priceTable[category]
	if !ok {
		tier = priceTable[CategoryA]
	}
	if category == CategoryB && transmission == TransmissionAutomatic {
		return tier.Automatic
	}
	return tier.Manual
}

// ResolvePriceLabel is ResolvePrice formatted for display, e.g. "700€".
func ResolvePriceLabel(category Category, transmission Transmission) string {
	return ResolvePrice(category, transmission).String()
}

type QuoteLine struct {
	Name  string `json:"name"`
	Price string `json:"price,omitempty"`
}

// Quote is derived on demand and never stored.
type Quote struct {
	Category     Category     `json:"category"`
	Transmission Transmission `json:"transmission"`
	Price        Price        `json:"price"`
	Label        string       `json:"label"`
	Lines        []QuoteLine  `json:"lines"`
}

func NewQuote(category Category, transmission Transmission) Quote {
	price := ResolvePrice(category, transmission)
	return Quote{
		Category:     category,
		Transmission: transmission,
		Price:        price,
		Label:        price.String(),
		Lines:        quoteLines(category, transmission, price),
	}
}

func quoteLines(category Category, transmission Transmission, price Price) []QuoteLine {
	switch category {
	case CategoryB:
		return []QuoteLine{
			{Name: "Category B driving course"},
			{Name: fmt.Sprintf("Practical lessons (%s transmission)", transmission), Price: price.String()},
		}
	case CategoryC:
		return []QuoteLine{
			{Name: "Final course", Price: price.String()},
			{Name: "Category C preparation"},
			{Name: "Final driving test preparation", Price: price.String()},
		}
	default:
		return []QuoteLine{
			{Name: "Category A motorcycle course"},
			{Name: "Theory course", Price: Price(150).String()},
			{Name: "Driving lessons", Price: (price - 150).String()},
		}
	}
}
