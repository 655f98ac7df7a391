// Package types provides common type aliases and utilities.
package types

import (
	"strings"

	"github.com/shopspring/decimal"

	"erpsync/internal/core/apperror"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// PricePlaces is the number of decimals sent to the directory for prices.
const PricePlaces int32 = 2

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// PriceValue rounds to PricePlaces and returns the float the remote API expects.
func PriceValue(m Money) float64 {
	return m.Round(PricePlaces).InexactFloat64()
}

// BaseCurrency is the catalog code of the local currency.
const BaseCurrency = "1"

// Rates holds exchange rates keyed by catalog currency code.
// The base currency is implied and always converts at 1.
type Rates map[string]Money

// Convert turns an amount in currency into base currency. A blank code is the
// base currency. A foreign currency without a positive rate is NOT_FOUND:
// the amount is never passed through unconverted.
func (r Rates) Convert(amount Money, currency string) (Money, error) {
	currency = strings.TrimSpace(currency)
	if currency == "" || currency == BaseCurrency {
		return amount, nil
	}
	rate, ok := r[currency]
	if !ok || !rate.IsPositive() {
		return Zero(), apperror.NewNotFound("exchange rate", currency)
	}
	return amount.Mul(rate), nil
}
