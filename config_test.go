package main

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"

	"auction-api/outbox"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "EVENT_SINKS", "STORE_SHARDS", "DEDUPER_TTL", "OUTBOX_RELAY_INTERVAL", "OTEL_SAMPLER_RATIO"} {
		t.Setenv(k, "")
	}
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8080" || cfg.Shards != 32 || cfg.DeduperTTL != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0] != sinkLog {
		t.Fatalf("unexpected sinks %v", cfg.Sinks)
	}
	if cfg.Relay.Interval != time.Second || cfg.Relay.RetryInitial != 250*time.Millisecond || cfg.Relay.RetryMax != 30*time.Second {
		t.Fatalf("unexpected relay config %+v", cfg.Relay)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("STORE_SHARDS", "8")
	t.Setenv("EVENT_SINKS", "log, Redis")
	t.Setenv("REDIS_CONNECTION_STRING", "localhost:6379")
	t.Setenv("OUTBOX_RETRY_MAX", "5s")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.25")
	t.Setenv("DEBUG", "true")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9090" || cfg.Shards != 8 || !cfg.Debug {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1] != sinkRedis {
		t.Fatalf("unexpected sinks %v", cfg.Sinks)
	}
	if cfg.Relay.RetryMax != 5*time.Second || cfg.OTelSampleRatio != 0.25 {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad shards", map[string]string{"STORE_SHARDS": "abc"}},
		{"zero shards", map[string]string{"STORE_SHARDS": "0"}},
		{"bad ttl", map[string]string{"DEDUPER_TTL": "forever"}},
		{"negative interval", map[string]string{"OUTBOX_RELAY_INTERVAL": "-1s"}},
		{"bad ratio", map[string]string{"OTEL_SAMPLER_RATIO": "2"}},
		{"unknown sink", map[string]string{"EVENT_SINKS": "kafka"}},
		{"redis without conn", map[string]string{"EVENT_SINKS": "redis", "REDIS_CONNECTION_STRING": ""}},
		{"azqueue without queue", map[string]string{"EVENT_SINKS": "azqueue", "STORAGE_CONNECTION_STRING": "UseDevelopmentStorage=true", "EVENTS_QUEUE": ""}},
		{"no sinks", map[string]string{"EVENT_SINKS": " , "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseRedisConn(t *testing.T) {
	tests := []struct {
		conn     string
		addr     string
		password string
		tls      bool
	}{
		{"redis://:secret@cache:6380/0", "cache:6380", "secret", false},
		{"cache.example.net:6380,password=pw,ssl=True,abortConnect=False", "cache.example.net:6380", "pw", true},
		{"localhost:6379", "localhost:6379", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.conn, func(t *testing.T) {
			opts := parseRedisConn(tt.conn)
			if opts.Addr != tt.addr || opts.Password != tt.password || (opts.TLSConfig != nil) != tt.tls {
				t.Fatalf("parseRedisConn(%q) = addr %q password %q tls %v", tt.conn, opts.Addr, opts.Password, opts.TLSConfig != nil)
			}
		})
	}
}

func TestBuildSink(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)
	rc := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	sink, cleanup, err := buildSink(context.Background(), config{Sinks: []string{sinkLog}}, nil, logger)
	if err != nil {
		t.Fatalf("build log sink: %v", err)
	}
	cleanup()
	if _, ok := sink.(*outbox.LogSink); !ok {
		t.Fatalf("expected single log sink, got %T", sink)
	}

	sink, cleanup, err = buildSink(context.Background(), config{Sinks: []string{sinkLog, sinkRedis}, EventsChannel: "events"}, rc, logger)
	if err != nil {
		t.Fatalf("build fanout: %v", err)
	}
	defer cleanup()
	fan, ok := sink.(outbox.FanoutSink)
	if !ok || len(fan) != 2 {
		t.Fatalf("expected two-way fanout, got %T", sink)
	}
	if _, ok := fan[1].(*outbox.RedisSink); !ok {
		t.Fatalf("expected redis sink second, got %T", fan[1])
	}
}
