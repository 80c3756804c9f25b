package main

import (
	"context"
	"github.com/ariefcatur/takeaway-settlement/internal/app"
	"github.com/ariefcatur/takeaway-settlement/internal/config"
	"github.com/ariefcatur/takeaway-settlement/internal/events"
	kafkax "github.com/ariefcatur/takeaway-settlement/internal/kafka"
	"github.com/ariefcatur/takeaway-settlement/internal/logx"
	"github.com/ariefcatur/takeaway-settlement/internal/payment"
	"github.com/ariefcatur/takeaway-settlement/internal/redisx"
	"go.uber.org/zap"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logx.New(cfg.LogLevel, cfg.ServiceName+"-worker")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required for the callback worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	w := &payment.CallbackWorker{Payments: a.Payments, Log: logger}
	if a.Redis != nil {
		w.Dedup = &redisx.Deduper{Client: a.Redis, Service: "payment-callback"}
	}

	cons := kafkax.NewConsumer(brokers, cfg.WorkerGroup, events.TopicPaymentCallback, cfg.WorkerCount, logger)
	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info("callback consumer started",
			zap.String("group", cfg.WorkerGroup),
			zap.String("topic", events.TopicPaymentCallback),
			zap.Int("workers", cfg.WorkerCount))
		if err := cons.Start(ctx, w.Handle); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("shutting down consumer")
	cancel()
	<-done
}
