package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/takeaway-settlement/internal/app"
	"github.com/ariefcatur/takeaway-settlement/internal/config"
	"github.com/ariefcatur/takeaway-settlement/internal/httpx"
	"github.com/ariefcatur/takeaway-settlement/internal/logx"
	"github.com/ariefcatur/takeaway-settlement/internal/realtime"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logx.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}

	api := &httpx.API{
		Orders:      a.Orders,
		Storefronts: a.Stores.Storefronts,
		Payments:    a.Payments,
		Callbacks:   a.Callbacks,
		Ledger:      a.Ledger,
		Stats:       a.Stats,
		Rates:       a.Rates,
		Inbox:       a.Inbox,
		Log:         logger,
	}
	if a.Cache != nil {
		api.StatusCache = a.Cache
	}
	if a.Redis != nil {
		api.Bridge = &realtime.Bridge{
			Client:   a.Redis,
			Prefix:   app.RealtimePrefix,
			Upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
			Allow:    api.AllowChannel,
			Log:      logger,
		}
	}
	router := httpx.NewRouter(logger)
	api.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreDriver), zap.Strings("gateways", a.Payments.Gateways()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	a.Close() // flush producer, close redis and db
	cancel()
}
