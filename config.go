package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"auction-api/outbox"
)

const (
	sinkLog     = "log"
	sinkRedis   = "redis"
	sinkNATS    = "nats"
	sinkAzQueue = "azqueue"
)

type config struct {
	ListenAddr string
	Debug      bool
	LogFormat  string
	Shards     int

	Sinks         []string
	RedisConn     string
	EventsChannel string
	NATSURL       string
	NATSStream    string
	StorageConn   string
	EventsQueue   string
	DeduperTTL    time.Duration

	Relay outbox.RelayConfig

	ItemsSeedFile string

	OTelEnabled     bool
	OTelServiceName string
	OTelSampleRatio float64
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return n, nil
}

func envDur(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return d, nil
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envRatio(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s: must be between 0 and 1", key)
	}
	return f, nil
}

func loadConfig() (config, error) {
	cfg := config{
		ListenAddr:      envString("LISTEN_ADDR", ":8080"),
		Debug:           envBool("DEBUG"),
		LogFormat:       envString("LOG_FORMAT", "text"),
		RedisConn:       envString("REDIS_CONNECTION_STRING", ""),
		EventsChannel:   envString("EVENTS_CHANNEL", "auction-events"),
		NATSURL:         envString("NATS_URL", nats.DefaultURL),
		NATSStream:      envString("NATS_STREAM", "AUCTION_EVENTS"),
		StorageConn:     envString("STORAGE_CONNECTION_STRING", ""),
		EventsQueue:     envString("EVENTS_QUEUE", ""),
		ItemsSeedFile:   envString("ITEMS_SEED_FILE", ""),
		OTelEnabled:     envBool("OTEL_ENABLED"),
		OTelServiceName: envString("OTEL_SERVICE_NAME", "auction-api"),
	}
	var err error
	if cfg.Shards, err = envInt("STORE_SHARDS", 32); err != nil {
		return cfg, err
	}
	if cfg.DeduperTTL, err = envDur("DEDUPER_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Relay.Interval, err = envDur("OUTBOX_RELAY_INTERVAL", time.Second); err != nil {
		return cfg, err
	}
	if cfg.Relay.RetryInitial, err = envDur("OUTBOX_RETRY_INITIAL", 250*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.Relay.RetryMax, err = envDur("OUTBOX_RETRY_MAX", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Relay.Timeout, err = envDur("OUTBOX_DELIVERY_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.OTelSampleRatio, err = envRatio("OTEL_SAMPLER_RATIO", 1); err != nil {
		return cfg, err
	}

	for _, s := range strings.Split(envString("EVENT_SINKS", sinkLog), ",") {
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "":
			continue
		case sinkLog, sinkNATS:
		case sinkRedis:
			if cfg.RedisConn == "" {
				return cfg, fmt.Errorf("event sink %q requires REDIS_CONNECTION_STRING", s)
			}
		case sinkAzQueue:
			if cfg.StorageConn == "" || cfg.EventsQueue == "" {
				return cfg, fmt.Errorf("event sink %q requires STORAGE_CONNECTION_STRING and EVENTS_QUEUE", s)
			}
		default:
			return cfg, fmt.Errorf("unknown event sink %q", s)
		}
		cfg.Sinks = append(cfg.Sinks, s)
	}
	if len(cfg.Sinks) == 0 {
		return cfg, fmt.Errorf("EVENT_SINKS selects no sink")
	}
	return cfg, nil
}

// parseRedisConn accepts a redis:// URL or the "host:port,password=...,ssl=true"
// form used by managed Redis connection strings.
func parseRedisConn(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: strings.TrimSpace(parts[0])}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(strings.TrimSpace(kv[1]), "true") {
				opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
			}
		}
	}
	return opts
}

// buildSink connects every configured sink. The returned func releases the
// connections opened for them.
func buildSink(ctx context.Context, cfg config, rc *redis.Client, logger *log.Logger) (outbox.Sink, func(), error) {
	var sinks outbox.FanoutSink
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	for _, name := range cfg.Sinks {
		switch name {
		case sinkLog:
			sinks = append(sinks, outbox.NewLogSink(logger))
		case sinkRedis:
			sinks = append(sinks, outbox.NewRedisSink(rc, cfg.EventsChannel))
		case sinkNATS:
			nc, err := nats.Connect(cfg.NATSURL, nats.Name("auction-api"), nats.MaxReconnects(-1))
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("nats connect: %w", err)
			}
			closers = append(closers, func() { _ = nc.Drain() })
			js, err := jetstream.New(nc)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("jetstream: %w", err)
			}
			s, err := outbox.NewNATSSink(ctx, js, cfg.NATSStream)
			if err != nil {
				cleanup()
				return nil, nil, err
			}
			sinks = append(sinks, s)
		case sinkAzQueue:
			s, err := outbox.NewAzureQueueSink(cfg.StorageConn, cfg.EventsQueue)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("azure queue: %w", err)
			}
			sinks = append(sinks, s)
		}
		logger.WithField("sink", name).Info("event sink enabled")
	}
	if len(sinks) == 1 {
		return sinks[0], cleanup, nil
	}
	return sinks, cleanup, nil
}
