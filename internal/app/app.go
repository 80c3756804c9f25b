// Package app wires configuration into the services shared by cmd/api and cmd/worker.
package app

import (
	"context"
	"fmt"
	"github.com/ariefcatur/takeaway-settlement/internal/config"
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	kafkax "github.com/ariefcatur/takeaway-settlement/internal/kafka"
	"github.com/ariefcatur/takeaway-settlement/internal/ledger"
	"github.com/ariefcatur/takeaway-settlement/internal/memstore"
	"github.com/ariefcatur/takeaway-settlement/internal/notify"
	"github.com/ariefcatur/takeaway-settlement/internal/orders"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/ariefcatur/takeaway-settlement/internal/payment/httpgateway"
	"github.com/ariefcatur/takeaway-settlement/internal/postgres"
	"github.com/ariefcatur/takeaway-settlement/internal/realtime"
	"github.com/ariefcatur/takeaway-settlement/internal/redisx"
	"github.com/ariefcatur/takeaway-settlement/internal/settlement"
	"github.com/ariefcatur/takeaway-settlement/internal/stats"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stores groups the persistence ports. Both drivers fill every field.
type Stores struct {
	Tx            orders.TxRunner
	Orders        orders.Store
	Storefronts   orders.StorefrontStore
	Catalog       orders.Catalog
	Rates         settlement.RateSource
	Ledger        ledger.Store
	Notifications notify.Store
	Stats         stats.Source
}

type App struct {
	Cfg    *config.Config
	Log    *zap.Logger
	Stores Stores

	Redis    *redis.Client     // nil when REDIS_ADDR is empty
	Producer *kafkax.Producer  // nil when KAFKA_BROKERS is empty
	Cache    *redisx.StatusCache

	Rates     *settlement.Resolver
	Ledger    *ledger.Ledger
	Fanout    *notify.Fanout
	Orders    *orders.Service
	Payments  *payment.Service
	Callbacks *payment.Callbacks
	Stats     *stats.Aggregator
	Inbox     *notify.Inbox

	closers []func()
}

// RealtimePrefix namespaces the Redis pub/sub channels.
const RealtimePrefix = "takeaway:"

func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}
	if err := a.openStores(ctx); err != nil {
		return nil, err
	}

	var push notify.Publisher = realtime.Discard{Log: log}
	if cfg.RedisAddr != "" {
		a.Redis = redisx.New(cfg.RedisAddr)
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
		if err := redisx.Ping(ctx, a.Redis); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.Cache = &redisx.StatusCache{Client: a.Redis, Log: log}
		push = &realtime.RedisPublisher{Client: a.Redis, Prefix: RealtimePrefix}
	}

	var sink notify.EventSink
	var queue payment.Enqueuer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		a.Producer = kafkax.NewProducer(brokers, 1024, log)
		a.Producer.Start(ctx)
		em := &events.Emitter{Producer: a.Producer, Service: cfg.ServiceName}
		sink, queue = em, em
	}

	fallback, err := cfg.FallbackRate()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Rates = &settlement.Resolver{Source: a.Stores.Rates, Fallback: decimal.NewNullDecimal(fallback), Log: log}
	a.Ledger = &ledger.Ledger{Store: a.Stores.Ledger, Tx: a.Stores.Tx}
	a.Fanout = &notify.Fanout{Store: a.Stores.Notifications, Push: push, Events: sink, Log: log}
	a.Inbox = &notify.Inbox{Store: a.Stores.Notifications}

	var cache orders.StatusCache
	if a.Cache != nil {
		cache = a.Cache
	}
	a.Orders = &orders.Service{
		Tx:          a.Stores.Tx,
		Orders:      a.Stores.Orders,
		Storefronts: a.Stores.Storefronts,
		Catalog:     a.Stores.Catalog,
		Ledger:      a.Ledger,
		Notifier:    a.Fanout,
		Cache:       cache,
		Log:         log,
	}

	reconciler := func(gw payment.Gateway, callbackURL string) *payment.Reconciler {
		return &payment.Reconciler{
			Gateway:     gw,
			Tx:          a.Stores.Tx,
			Orders:      a.Stores.Orders,
			Storefronts: a.Stores.Storefronts,
			Rates:       a.Rates,
			Ledger:      a.Ledger,
			Notifier:    a.Fanout,
			Cache:       cache,
			Log:         log.With(zap.String("gateway", gw.Name())),
			CallbackURL: callbackURL,
			Timeout:     cfg.GatewayTimeout,
		}
	}
	a.Payments = payment.NewService(
		reconciler(httpgateway.New(httpgateway.Alipay, cfg.AlipayBaseURL, cfg.GatewayTimeout), cfg.AlipayReturnURL),
		reconciler(httpgateway.New(httpgateway.Wechat, cfg.WechatBaseURL, cfg.GatewayTimeout), cfg.WechatNotifyURL),
	)
	a.Callbacks = &payment.Callbacks{Payments: a.Payments, Queue: queue, Log: log}
	a.Stats = &stats.Aggregator{Source: a.Stores.Stats, Storefronts: a.Stores.Storefronts, Rates: a.Rates}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	switch a.Cfg.StoreDriver {
	case config.DriverMemory:
		m := memstore.New()
		a.Stores = Stores{Tx: m, Orders: m, Storefronts: m, Catalog: m, Rates: m, Ledger: m, Notifications: m, Stats: m}
		a.Log.Warn("using in-memory store, data is lost on exit")
		return nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, a.Cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			a.Close()
			return fmt.Errorf("db migrate: %w", err)
		}
		tx := &postgres.TxManager{DB: db}
		sf := &postgres.StorefrontStore{DB: db}
		a.Stores = Stores{
			Tx:            tx,
			Orders:        &postgres.OrderStore{DB: db, Tx: tx},
			Storefronts:   sf,
			Catalog:       sf,
			Rates:         sf,
			Ledger:        &postgres.LedgerStore{DB: db},
			Notifications: &postgres.NotificationStore{DB: db},
			Stats:         &postgres.StatsStore{DB: db},
		}
		return nil
	}
	return fmt.Errorf("unknown store driver %q", a.Cfg.StoreDriver)
}

// Close flushes the producer and releases connections in reverse order.
func (a *App) Close() {
	if a.Producer != nil {
		a.Producer.Close()
		a.Producer.WaitClosed()
		a.Producer = nil
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
