package api

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("redis close: %v", cerr)
		}
	})
	return m, client
}

func TestRedisDeduperAddRemove(t *testing.T) {
	_, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	added, err := deduper.Add(ctx, "bidder", "k1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !added {
		t.Fatalf("expected key to be added")
	}
	added, err = deduper.Add(ctx, "bidder", "k1")
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if added {
		t.Fatalf("expected duplicate on second add")
	}

	if err := deduper.Remove(ctx, "bidder", "k1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	added, err = deduper.Add(ctx, "bidder", "k1")
	if err != nil {
		t.Fatalf("add after remove: %v", err)
	}
	if !added {
		t.Fatalf("expected key to be added again after remove")
	}
}

func TestRedisDeduperKeyNamespacing(t *testing.T) {
	_, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()
	const (
		bidderID = "bidder"
		key      = "k1"
	)

	if _, err := deduper.Add(ctx, bidderID, key); err != nil {
		t.Fatalf("add: %v", err)
	}

	expectedKey := bidderID + ":" + dedupeKeyPrefix + ":" + key
	exists, err := client.Exists(ctx, expectedKey).Result()
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists != 1 {
		t.Fatalf("expected redis key %q to exist", expectedKey)
	}
}

func TestRedisDeduperKeysExpire(t *testing.T) {
	m, client := newTestRedis(t)
	deduper := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	if _, err := deduper.Add(ctx, "bidder", "k1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	m.FastForward(2 * time.Minute)
	added, err := deduper.Add(ctx, "bidder", "k1")
	if err != nil {
		t.Fatalf("add after ttl: %v", err)
	}
	if !added {
		t.Fatalf("expected key to be re-added once expired")
	}
}
