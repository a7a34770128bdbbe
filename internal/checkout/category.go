package checkout

import (
	"fmt"
	"strings"
)

// Category is the course tier taken from the checkout URL.
type Category string

const (
	CategoryA       Category = "category-a"
	CategoryB       Category = "category-b"
	CategoryC       Category = "category-c"
	CategoryDefault Category = "default"
)

// ParseCategory never fails: empty or unknown tokens become CategoryDefault.
func ParseCategory(raw string) Category {
	switch c := Category(strings.TrimSpace(raw)); c {
	case CategoryA, CategoryB, CategoryC:
		return c
	default:
		return CategoryDefault
	}
}

// Known reports whether c is one of the three course tiers.
func (c Category) Known() bool {
	return c == CategoryA || c == CategoryB || c == CategoryC
}

func (c Category) String() string {
	return string(c)
}

// Transmission only matters for category B.
type Transmission string

const (
	TransmissionManual    Transmission = "manual"
	TransmissionAutomatic Transmission = "automatic"
)

func ParseTransmission(raw string) (Transmission, error) {
	switch t := Transmission(strings.ToLower(strings.TrimSpace(raw))); t {
	case TransmissionManual, TransmissionAutomatic:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransmission, raw)
	}
}

func (t Transmission) String() string {
	return string(t)
}
