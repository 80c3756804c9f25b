// Package stats computes dashboard rollups over orders on demand.
package stats

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"time"
)

// Scope selects the orders a rollup covers. StorefrontID 0 means platform-wide.
type Scope struct {
	StorefrontID int64
}

func Platform() Scope { return Scope{} }

func (s Scope) Platform() bool { return s.StorefrontID == 0 }

type Sums struct {
	PayAmount      decimal.Decimal
	PlatformFee    decimal.Decimal
	MerchantIncome decimal.Decimal
}

// Range is a half-open time window; a nil bound is unbounded.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

type Source interface {
	CountByStatus(ctx context.Context, scope Scope) (map[orders.Status]int64, error)
	CountCreated(ctx context.Context, scope Scope, r Range) (int64, error)
	// SumCompleted sums COMPLETED orders whose completedAt falls in r.
	SumCompleted(ctx context.Context, scope Scope, r Range) (Sums, error)
}

type Aggregate struct {
	StorefrontID        int64                   `json:"storefrontId,omitempty"`
	PlatformRate        *decimal.Decimal        `json:"platformRate,omitempty"`
	PlatformRatePercent *decimal.Decimal        `json:"platformRatePercent,omitempty"`
	TodayOrders         int64                   `json:"todayOrders"`
	TotalOrders         int64                   `json:"totalOrders"`
	ActiveOrders        int64                   `json:"activeOrders"`
	CountsByStatus      map[orders.Status]int64 `json:"countsByStatus"`
	TodayRevenue        decimal.Decimal         `json:"todayRevenue"`
	TotalRevenue        decimal.Decimal         `json:"totalRevenue"`
	TodayPlatformFee    decimal.Decimal         `json:"todayPlatformFee"`
	TotalPlatformFee    decimal.Decimal         `json:"totalPlatformFee"`
	TodayMerchantIncome decimal.Decimal         `json:"todayMerchantIncome"`
	TotalMerchantIncome decimal.Decimal         `json:"totalMerchantIncome"`
	GeneratedAt         time.Time               `json:"generatedAt"`
}

type Aggregator struct {
	Source      Source
	Storefronts orders.StorefrontStore
	Rates       *settlement.Resolver
	Now         func() time.Time
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// Today returns the server-local calendar day containing now.
func Today(now time.Time) Range {
	local := now.Local()
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 0, 1)
	return Range{From: &start, To: &end}
}

func (a *Aggregator) Get(ctx context.Context, scope Scope) (*Aggregate, error) {
	now := a.now()
	today := Today(now)
	out := &Aggregate{StorefrontID: scope.StorefrontID, GeneratedAt: now}

	var (
		byStatus   map[orders.Status]int64
		todaySums  Sums
		totalSums  Sums
		todayCount int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		byStatus, err = a.Source.CountByStatus(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		todayCount, err = a.Source.CountCreated(gctx, scope, today)
		return err
	})
	g.Go(func() (err error) {
		totalSums, err = a.Source.SumCompleted(gctx, scope, Range{})
		return err
	})
	g.Go(func() (err error) {
		todaySums, err = a.Source.SumCompleted(gctx, scope, today)
		return err
	})
	if !scope.Platform() {
		g.Go(func() error {
			sf, err := a.Storefronts.Storefront(gctx, scope.StorefrontID)
			if err != nil {
				return err
			}
			rate, err := a.Rates.Resolve(gctx, sf.PlatformRate)
			if err != nil {
				return err
			}
			pct := settlement.Percent(rate)
			out.PlatformRate, out.PlatformRatePercent = &rate, &pct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out.CountsByStatus = make(map[orders.Status]int64, len(orders.AllStatuses))
	for _, s := range orders.AllStatuses {
		n := byStatus[s]
		out.CountsByStatus[s] = n
		out.TotalOrders += n
		if s.Settled() && !s.Terminal() {
			out.ActiveOrders += n
		}
	}
	out.TodayOrders = todayCount
	out.TotalRevenue = totalSums.PayAmount
	out.TotalPlatformFee = totalSums.PlatformFee
	out.TotalMerchantIncome = totalSums.MerchantIncome
	out.TodayRevenue = todaySums.PayAmount
	out.TodayPlatformFee = todaySums.PlatformFee
	out.TodayMerchantIncome = todaySums.MerchantIncome
	return out, nil
}
