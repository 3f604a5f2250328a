package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Quote is the price/terms proposal a performer attaches to a booking.
// It is a value object: the booking stores its fields inline.
type Quote struct {
	Amount   decimal.Decimal
	Notes    string
	IssuedAt time.Time
}

// QuotePolicy holds the configurable sanity limits applied to every quote.
// A zero MaxAmount or MaxNotesLength disables that limit.
type QuotePolicy struct {
	MaxAmount      decimal.Decimal
	MaxNotesLength int
}

// DefaultQuotePolicy is used when no policy is configured.
var DefaultQuotePolicy = QuotePolicy{
	MaxAmount:      decimal.NewFromInt(1_000_000),
	MaxNotesLength: 2000,
}

// Validate checks amount and notes against the policy.
// Returns ErrInvalidQuote describing the first rule that failed.
func (p QuotePolicy) Validate(amount decimal.Decimal, notes string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidQuote)
	}
	if p.MaxAmount.IsPositive() && amount.GreaterThan(p.MaxAmount) {
		return fmt.Errorf("%w: amount exceeds the maximum of %s", ErrInvalidQuote, p.MaxAmount.String())
	}
	if p.MaxNotesLength > 0 && utf8.RuneCountInString(notes) > p.MaxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidQuote, p.MaxNotesLength)
	}
	return nil
}

// FormatMoney renders an amount the way it appears in conversation messages.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
