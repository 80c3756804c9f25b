package memstore

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	s := New()
	sf := s.AddStorefront(orders.Storefront{OwnerID: 1, Name: "A"})
	o := s.PutOrder(orders.Order{StorefrontID: sf.ID, Status: orders.StatusPending})
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.AddBalance(ctx, sf.ID, decimal.NewFromInt(10)); err != nil {
			return err
		}
		locked, err := s.LockOrderByID(ctx, o.ID)
		if err != nil {
			return err
		}
		locked.Status = orders.StatusPaid
		if err := s.UpdateOrderState(ctx, locked, orders.StatusPending); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Storefront(ctx, sf.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())
	again, _ := s.OrderByID(ctx, o.ID)
	assert.Equal(t, orders.StatusPending, again.Status)
}

func TestUpdateOrderStateGuardsFromStatus(t *testing.T) {
	s := New()
	o := s.PutOrder(orders.Order{Status: orders.StatusCancelled})
	o.Status = orders.StatusPaid
	err := s.UpdateOrderState(context.Background(), &o, orders.StatusPending)
	var te *orders.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, orders.StatusCancelled, te.From)
}

func TestReturnedOrdersAreCopies(t *testing.T) {
	s := New()
	o := s.PutOrder(orders.Order{Status: orders.StatusPending, Items: []orders.OrderItem{{Name: "Tea", Quantity: 1}}})
	got, _ := s.OrderByID(context.Background(), o.ID)
	got.Items[0].Name = "Coffee"
	got.Status = orders.StatusPaid

	again, _ := s.OrderByID(context.Background(), o.ID)
	assert.Equal(t, "Tea", again.Items[0].Name)
	assert.Equal(t, orders.StatusPending, again.Status)
}

func TestDefaultPlatformRateIgnoresGarbage(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, ok, err := s.DefaultPlatformRate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "default_platform_rate", "eight percent"))
	_, ok, _ = s.DefaultPlatformRate(ctx)
	assert.False(t, ok)

	require.NoError(t, s.SetConfig(ctx, "default_platform_rate", " 0.06 "))
	r, ok, _ := s.DefaultPlatformRate(ctx)
	assert.True(t, ok)
	assert.Equal(t, "0.06", r.String())
}
