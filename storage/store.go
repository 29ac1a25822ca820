package storage

import (
	"errors"
	"hash/maphash"
	"sync"
)

var (
	// ErrNotFound is returned when no value is stored under a key.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by Add when the key is already taken.
	ErrAlreadyExists = errors.New("already exists")
)

// DefaultShards is the shard count used when none is configured.
const DefaultShards = 32

// Cloner is implemented by values that need a deep copy to be handed out
// as independent snapshots.
type Cloner[V any] interface {
	Clone() V
}

// Store is a concurrent key-value container. Each key maps to one shard
// guarded by its own lock, so operations on different shards never contend.
// Values implementing Cloner are copied on the way in and on the way out;
// callers never share memory with the stored copy.
type Store[K comparable, V any] struct {
	seed   maphash.Seed
	shards []*shard[K, V]
}

type shard[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// New creates a store with n shards. n <= 0 selects DefaultShards.
func New[K comparable, V any](n int) *Store[K, V] {
	if n <= 0 {
		n = DefaultShards
	}
	s := &Store[K, V]{seed: maphash.MakeSeed(), shards: make([]*shard[K, V], n)}
	for i := range s.shards {
		s.shards[i] = &shard[K, V]{items: make(map[K]V)}
	}
	return s
}

func (s *Store[K, V]) shardFor(key K) *shard[K, V] {
	h := maphash.Comparable(s.seed, key)
	return s.shards[h%uint64(len(s.shards))]
}

func copyOf[V any](v V) V {
	if c, ok := any(v).(Cloner[V]); ok {
		return c.Clone()
	}
	return v
}

// Add inserts v under key only if the key is absent.
func (s *Store[K, V]) Add(key K, v V) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, ok := sh.items[key]; ok {
		return ErrAlreadyExists
	}
	sh.items[key] = copyOf(v)
	return nil
}

// Get returns a snapshot of the value stored under key.
func (s *Store[K, V]) Get(key K) (V, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	v, ok := sh.items[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return copyOf(v), nil
}

// Update replaces the value under key, inserting it when absent. Concurrent
// updates of one key are last-writer-wins; use Mutate for read-modify-write.
func (s *Store[K, V]) Update(key K, v V) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.items[key] = copyOf(v)
	sh.mu.Unlock()
}

// Mutate runs fn against a copy of the value under key while holding the
// key's shard lock and stores what fn returns. fn must not block or call
// back into the store. When fn fails nothing is written.
func (s *Store[K, V]) Mutate(key K, fn func(V) (V, error)) (V, error) {
	var zero V
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	cur, ok := sh.items[key]
	if !ok {
		return zero, ErrNotFound
	}
	next, err := fn(copyOf(cur))
	if err != nil {
		return zero, err
	}
	sh.items[key] = copyOf(next)
	return next, nil
}

// DeleteIf removes key when match reports true for its current value.
func (s *Store[K, V]) DeleteIf(key K, match func(V) bool) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	v, ok := sh.items[key]
	if !ok || (match != nil && !match(v)) {
		return false
	}
	delete(sh.items, key)
	return true
}

// Search returns snapshots of every value for which pred holds. The shards
// are read-locked together just long enough to capture a point-in-time view;
// pred runs after the locks are released. Stored values are replaced, never
// modified in place, so the captured view stays stable.
func (s *Store[K, V]) Search(pred func(V) bool) []V {
	for _, sh := range s.shards {
		sh.mu.RLock()
	}
	view := make([]V, 0, s.lenLocked())
	for _, sh := range s.shards {
		for _, v := range sh.items {
			view = append(view, v)
		}
	}
	for _, sh := range s.shards {
		sh.mu.RUnlock()
	}

	var out []V
	for _, v := range view {
		if pred == nil || pred(v) {
			out = append(out, copyOf(v))
		}
	}
	return out
}

func (s *Store[K, V]) lenLocked() int {
	n := 0
	for _, sh := range s.shards {
		n += len(sh.items)
	}
	return n
}

// Len reports the number of stored values.
func (s *Store[K, V]) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.items)
		sh.mu.RUnlock()
	}
	return n
}
