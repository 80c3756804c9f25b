package settlement

import (
	"context"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const KeyDefaultPlatformRate = "default_platform_rate"

// RateSource reads and writes the platform-wide default rate.
type RateSource interface {
	// DefaultPlatformRate returns ok=false when no (parsable) value is configured.
	DefaultPlatformRate(ctx context.Context) (rate decimal.Decimal, ok bool, err error)
	SetDefaultPlatformRate(ctx context.Context, rate decimal.Decimal) error
}

type Resolver struct {
	Source   RateSource
	Fallback decimal.NullDecimal // FallbackRate when unset
	Log      *zap.Logger
}

// Resolve picks the storefront override, then the platform default, then the fallback constant.
func (r *Resolver) Resolve(ctx context.Context, override decimal.NullDecimal) (decimal.Decimal, error) {
	if override.Valid {
		return override.Decimal, ValidateRate(override.Decimal)
	}
	if r.Source != nil {
		rate, ok, err := r.Source.DefaultPlatformRate(ctx)
		if err != nil {
			return decimal.Zero, err
		}
		if ok {
			if ValidateRate(rate) == nil {
				return rate, nil
			}
			if r.Log != nil {
				r.Log.Warn("ignoring out of range platform rate", zap.String("rate", rate.String()))
			}
		}
	}
	return r.fallback(), nil
}

func (r *Resolver) fallback() decimal.Decimal {
	if r.Fallback.Valid {
		return r.Fallback.Decimal
	}
	return FallbackRate
}

func (r *Resolver) SetDefault(ctx context.Context, rate decimal.Decimal) error {
	if err := ValidateRate(rate); err != nil {
		return err
	}
	return r.Source.SetDefaultPlatformRate(ctx, rate)
}
