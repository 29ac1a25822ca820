package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"auction-api/api"
	"auction-api/outbox"
	"auction-api/service"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := log.New()
	if cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := initTracing(cfg, logger)

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(parseRedisConn(cfg.RedisConn))
		defer rc.Close()
	}

	sink, closeSinks, err := buildSink(ctx, cfg, rc, logger)
	if err != nil {
		logger.Fatalf("event sinks: %v", err)
	}
	defer closeSinks()

	publisher := outbox.NewPublisher(sink, logger)
	svc := service.New(publisher, logger,
		service.WithShards(cfg.Shards),
		service.WithDeliveryTimeout(cfg.Relay.Timeout),
	)

	if cfg.ItemsSeedFile != "" {
		n, err := svc.LoadItemsFile(ctx, cfg.ItemsSeedFile)
		if err != nil {
			logger.Fatalf("seed items: %v", err)
		}
		logger.WithField("items", n).Info("item catalog seeded")
	}

	relay := outbox.NewRelay(cfg.Relay, svc, logger)
	relay.Start()

	var deduper api.Deduper
	if rc != nil {
		deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}
	stats := func() api.OutboxStats {
		delivered, failed := publisher.Counts()
		rs := relay.Stats()
		return api.OutboxStats{Delivered: delivered, Failed: failed, Relay: &rs}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, "Idempotency-Key"},
	}))
	api.Register(e, svc, deduper, stats, logger)

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}
	relay.Stop()
	if n, err := svc.FlushPending(shutdownCtx); err != nil {
		logger.WithError(err).WithField("delivered", n).Warn("events left undelivered at shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("tracer shutdown")
	}
}
