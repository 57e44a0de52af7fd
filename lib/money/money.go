package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

var amountCleaner = strings.NewReplacer(
	"€", "",
	"EUR", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	",", ".",
)

// ParseAmount parses a French formatted amount such as "1 234,56 €".
// Spaces, including the non breaking ones the portal emits, are dropped and
// the decimal comma becomes a point.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := amountCleaner.Replace(strings.TrimSpace(text))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}
	return value, nil
}
