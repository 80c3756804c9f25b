package stats_test

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/memstore"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

var d = decimal.RequireFromString

func completed(m *memstore.Store, sfID int64, created, done time.Time, pay, fee, income string) {
	m.PutOrder(orders.Order{
		StorefrontID:   sfID,
		UserID:         1,
		Status:         orders.StatusCompleted,
		PayAmount:      d(pay),
		PlatformFee:    decimal.NewNullDecimal(d(fee)),
		MerchantIncome: decimal.NewNullDecimal(d(income)),
		CreatedAt:      created,
		CompletedAt:    &done,
	})
}

func TestAggregate(t *testing.T) {
	m := memstore.New()
	rate := d("0.05")
	a := m.AddStorefront(orders.Storefront{OwnerID: 1, Name: "A", PlatformRate: decimal.NewNullDecimal(rate)})
	b := m.AddStorefront(orders.Storefront{OwnerID: 2, Name: "B"})

	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.Local)
	today := now.Add(-2 * time.Hour)
	yesterday := now.AddDate(0, 0, -1)

	// created yesterday, completed today: counts toward today's sums but not today's orders
	completed(m, a.ID, yesterday, today, "100.00", "5.00", "95.00")
	completed(m, a.ID, yesterday, yesterday, "33.33", "1.67", "31.66")
	completed(m, b.ID, today, today, "10.10", "0.81", "9.29")
	m.PutOrder(orders.Order{StorefrontID: a.ID, Status: orders.StatusPaid, PayAmount: d("7"), CreatedAt: today})
	m.PutOrder(orders.Order{StorefrontID: a.ID, Status: orders.StatusPreparing, PayAmount: d("8"), CreatedAt: today})
	m.PutOrder(orders.Order{StorefrontID: a.ID, Status: orders.StatusPending, PayAmount: d("9"), CreatedAt: today})
	m.PutOrder(orders.Order{StorefrontID: a.ID, Status: orders.StatusCancelled, PayAmount: d("9"), CreatedAt: yesterday,
		PlatformFee: decimal.NewNullDecimal(d("0.72")), MerchantIncome: decimal.NewNullDecimal(d("8.28"))})

	agg := &stats.Aggregator{
		Source:      m,
		Storefronts: m,
		Rates:       &settlement.Resolver{Source: m},
		Now:         func() time.Time { return now },
	}
	ctx := context.Background()

	sa, err := agg.Get(ctx, stats.Scope{StorefrontID: a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(6), sa.TotalOrders)
	assert.Equal(t, int64(3), sa.TodayOrders)
	assert.Equal(t, int64(2), sa.ActiveOrders)
	assert.Equal(t, int64(2), sa.CountsByStatus[orders.StatusCompleted])
	assert.Equal(t, int64(0), sa.CountsByStatus[orders.StatusDelivering])
	assert.Len(t, sa.CountsByStatus, len(orders.AllStatuses))
	assert.Equal(t, "133.33", sa.TotalRevenue.StringFixed(2))
	assert.Equal(t, "6.67", sa.TotalPlatformFee.StringFixed(2))
	assert.Equal(t, "126.66", sa.TotalMerchantIncome.StringFixed(2))
	assert.Equal(t, "100.00", sa.TodayRevenue.StringFixed(2))
	assert.Equal(t, "95.00", sa.TodayMerchantIncome.StringFixed(2))
	require.NotNil(t, sa.PlatformRate)
	assert.Equal(t, "0.05", sa.PlatformRate.String())
	assert.Equal(t, "5.00", sa.PlatformRatePercent.StringFixed(2))

	sb, err := agg.Get(ctx, stats.Scope{StorefrontID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, "8.00", sb.PlatformRatePercent.StringFixed(2))

	p, err := agg.Get(ctx, stats.Platform())
	require.NoError(t, err)
	assert.Nil(t, p.PlatformRate)
	assert.Equal(t, int64(7), p.TotalOrders)
	assert.Equal(t, int64(4), p.TodayOrders)
	assert.Equal(t, "143.43", p.TotalRevenue.StringFixed(2))
	assert.Equal(t, "7.48", p.TotalPlatformFee.StringFixed(2))
	assert.Equal(t, "110.10", p.TodayRevenue.StringFixed(2))
	assert.Equal(t, "5.81", p.TodayPlatformFee.StringFixed(2))
	assert.True(t, p.TotalPlatformFee.Add(p.TotalMerchantIncome).Equal(p.TotalRevenue))
}

func TestUnknownStorefront(t *testing.T) {
	m := memstore.New()
	agg := &stats.Aggregator{Source: m, Storefronts: m, Rates: &settlement.Resolver{Source: m}}
	_, err := agg.Get(context.Background(), stats.Scope{StorefrontID: 99})
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestTodayRange(t *testing.T) {
	now := time.Date(2024, 5, 1, 23, 59, 0, 0, time.Local)
	r := stats.Today(now)
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	end := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)
	assert.True(t, r.Contains(&start))
	assert.False(t, r.Contains(&end))
	assert.False(t, r.Contains(nil))
}
