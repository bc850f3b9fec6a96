package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("amount must be non-negative")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Money is a product price in a single currency
type Money struct {
	Amount   decimal.Decimal
	Currency string // ISO 4217 currency code (e.g., "USD", "EUR")
}

// NewMoney creates a new Money value object
func NewMoney(amount decimal.Decimal, currency string) (*Money, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	if !isValidCurrency(currency) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	return &Money{
		Amount:   amount,
		Currency: currency,
	}, nil
}

// isValidCurrency checks if the currency code is valid (3 letters)
func isValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range currency {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// String formats the price the way the store displays it, e.g. "0.99 EUR"
func (m *Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

// Micros returns the amount in millionths of the currency unit
func (m *Money) Micros() int64 {
	return m.Amount.Shift(6).IntPart()
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m.Amount.IsZero()
}
