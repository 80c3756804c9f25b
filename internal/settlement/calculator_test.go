package settlement

import (
	"context"
	"errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

var d = decimal.RequireFromString

func TestSettle(t *testing.T) {
	cases := []struct {
		pay, rate, fee, income string
	}{
		{"100.00", "0.08", "8.00", "92.00"},
		{"33.33", "0.05", "1.67", "31.66"}, // 1.6665 rounds up
		{"10.10", "0.05", "0.51", "9.59"},  // 0.505 is a tie, half-up
		{"0.00", "0.08", "0.00", "0.00"},
		{"59.90", "0", "0.00", "59.90"},
		{"59.90", "1", "59.90", "0.00"},
		{"12.34", "0.1234", "1.52", "10.82"},
	}
	for _, c := range cases {
		s, err := Settle(d(c.pay), d(c.rate))
		require.NoError(t, err, c.pay)
		assert.Equal(t, c.fee, s.PlatformFee.StringFixed(2), "fee for %s @ %s", c.pay, c.rate)
		assert.Equal(t, c.income, s.MerchantIncome.StringFixed(2), "income for %s @ %s", c.pay, c.rate)
		assert.True(t, s.PlatformFee.Add(s.MerchantIncome).Equal(d(c.pay)))
	}
}

func TestSettleRejectsBadInput(t *testing.T) {
	_, err := Settle(d("10"), d("1.01"))
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = Settle(d("10"), d("-0.01"))
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = Settle(d("-1"), d("0.08"))
	assert.ErrorIs(t, err, ErrNegativeMoney)
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "8.00", Percent(d("0.08")).StringFixed(2))
	assert.Equal(t, "12.35", Percent(d("0.12345")).StringFixed(2))
}

type fakeSource struct {
	rate decimal.Decimal
	ok   bool
	err  error
	set  *decimal.Decimal
}

func (f *fakeSource) DefaultPlatformRate(context.Context) (decimal.Decimal, bool, error) {
	return f.rate, f.ok, f.err
}

func (f *fakeSource) SetDefaultPlatformRate(_ context.Context, r decimal.Decimal) error {
	f.set = &r
	return nil
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	r := &Resolver{Source: &fakeSource{rate: d("0.05"), ok: true}}
	got, err := r.Resolve(ctx, decimal.NewNullDecimal(d("0.10")))
	require.NoError(t, err)
	assert.Equal(t, "0.1", got.String())

	got, err = r.Resolve(ctx, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.Equal(t, "0.05", got.String())

	r = &Resolver{Source: &fakeSource{}}
	got, err = r.Resolve(ctx, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, got.Equal(FallbackRate))

	r = &Resolver{Source: &fakeSource{rate: d("3"), ok: true}, Fallback: decimal.NewNullDecimal(d("0.06"))}
	got, err = r.Resolve(ctx, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.Equal(t, "0.06", got.String())

	r = &Resolver{Source: &fakeSource{}, Fallback: decimal.NewNullDecimal(decimal.Zero)}
	got, err = r.Resolve(ctx, decimal.NullDecimal{})
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	boom := errors.New("db down")
	r = &Resolver{Source: &fakeSource{err: boom}}
	_, err = r.Resolve(ctx, decimal.NullDecimal{})
	assert.ErrorIs(t, err, boom)

	_, err = r.Resolve(ctx, decimal.NewNullDecimal(d("2")))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestSetDefault(t *testing.T) {
	src := &fakeSource{}
	r := &Resolver{Source: src}
	assert.ErrorIs(t, r.SetDefault(context.Background(), d("1.5")), ErrInvalidRate)
	assert.Nil(t, src.set)

	require.NoError(t, r.SetDefault(context.Background(), d("0.07")))
	require.NotNil(t, src.set)
	assert.Equal(t, "0.07", src.set.String())
}
