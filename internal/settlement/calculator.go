// Package settlement splits a captured payment between platform and merchant.
package settlement

import (
	"errors"
	"fmt"
	"github.com/shopspring/decimal"
)

// FallbackRate applies when neither the storefront nor the platform config sets a rate.
var FallbackRate = decimal.RequireFromString("0.08")

var (
	ErrInvalidRate   = errors.New("platform rate must be within [0,1]")
	ErrNegativeMoney = errors.New("pay amount must not be negative")
)

type Split struct {
	Rate           decimal.Decimal
	PlatformFee    decimal.Decimal
	MerchantIncome decimal.Decimal
}

// Settle computes platformFee = round(pay*rate, 2, half-up) and merchantIncome = pay - platformFee.
// merchantIncome is never rounded independently so the two always add up to payAmount.
func Settle(payAmount, rate decimal.Decimal) (Split, error) {
	if err := ValidateRate(rate); err != nil {
		return Split{}, err
	}
	if payAmount.IsNegative() {
		return Split{}, ErrNegativeMoney
	}
	// Round is half away from zero, which is half-up for non-negative amounts.
	fee := payAmount.Mul(rate).Round(2)
	return Split{
		Rate:           rate,
		PlatformFee:    fee,
		MerchantIncome: payAmount.Sub(fee),
	}, nil
}

func ValidateRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: got %s", ErrInvalidRate, rate.String())
	}
	return nil
}

// Percent renders a rate as a percentage with two decimals (0.08 -> 8.00).
func Percent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(100)).Round(2)
}
