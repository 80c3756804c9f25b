// Package ledger keeps the running storefront balance and an append-only history of every change to it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"time"
)

type Kind string

const (
	KindCredit   Kind = "CREDIT"
	KindReversal Kind = "REVERSAL"
	KindWithdraw Kind = "WITHDRAW"
)

var (
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrDuplicateEntry is returned by AppendEntry when (order, kind) was already recorded.
	ErrDuplicateEntry = errors.New("ledger entry already recorded")
)

type Entry struct {
	ID           string
	StorefrontID int64
	OrderID      *int64
	Kind         Kind
	// signed: credits positive, reversals and withdrawals negative
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}

type Store interface {
	// LockBalance reads the balance under a row lock.
	LockBalance(ctx context.Context, storefrontID int64) (decimal.Decimal, error)
	// AddBalance atomically adds delta and returns the new balance.
	AddBalance(ctx context.Context, storefrontID int64, delta decimal.Decimal) (decimal.Decimal, error)
	AppendEntry(ctx context.Context, e Entry) error
	ListEntries(ctx context.Context, storefrontID int64, limit int) ([]Entry, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Ledger struct {
	Store Store
	Tx    TxRunner
	Now   func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Credit adds a settlement amount to the storefront balance.
// It joins the caller's transaction; the order may be credited only once.
func (l *Ledger) Credit(ctx context.Context, storefrontID, orderID int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return l.apply(ctx, storefrontID, &orderID, KindCredit, amount)
}

// Reverse takes a previously credited amount back out of the balance. It is not
// bounded by the current balance: when the income was already withdrawn the
// balance goes negative, recording what the merchant owes the platform, and
// Withdraw refuses everything until later credits bring it back above zero.
func (l *Ledger) Reverse(ctx context.Context, storefrontID, orderID int64, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	return l.apply(ctx, storefrontID, &orderID, KindReversal, amount.Neg())
}

func (l *Ledger) apply(ctx context.Context, storefrontID int64, orderID *int64, kind Kind, delta decimal.Decimal) error {
	balance, err := l.Store.AddBalance(ctx, storefrontID, delta)
	if err != nil {
		return fmt.Errorf("add balance: %w", err)
	}
	return l.Store.AppendEntry(ctx, Entry{
		ID:           uuid.NewString(),
		StorefrontID: storefrontID,
		OrderID:      orderID,
		Kind:         kind,
		Amount:       delta,
		BalanceAfter: balance,
		CreatedAt:    l.now(),
	})
}

func (l *Ledger) Balance(ctx context.Context, storefrontID int64) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := l.Tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		b, err = l.Store.LockBalance(ctx, storefrontID)
		return err
	})
	return b, err
}

// Withdraw debits amount (> 0) and returns the remaining balance.
func (l *Ledger) Withdraw(ctx context.Context, storefrontID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: withdraw amount must be positive", ErrNegativeAmount)
	}
	var remaining decimal.Decimal
	err := l.Tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := l.Store.LockBalance(ctx, storefrontID)
		if err != nil {
			return err
		}
		if current.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, current.StringFixed(2), amount.StringFixed(2))
		}
		if err := l.apply(ctx, storefrontID, nil, KindWithdraw, amount.Neg()); err != nil {
			return err
		}
		remaining = current.Sub(amount)
		return nil
	})
	return remaining, err
}

func (l *Ledger) History(ctx context.Context, storefrontID int64, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return l.Store.ListEntries(ctx, storefrontID, limit)
}
