package storage

import (
	"hash/maphash"
	"sync"
)

// KeyLocks is a fixed set of mutexes striped by key hash. Two keys may share
// a stripe; a key always maps to the same one.
type KeyLocks[K comparable] struct {
	seed    maphash.Seed
	stripes []sync.Mutex
}

// NewKeyLocks creates n stripes. n <= 0 selects DefaultShards.
func NewKeyLocks[K comparable](n int) *KeyLocks[K] {
	if n <= 0 {
		n = DefaultShards
	}
	return &KeyLocks[K]{seed: maphash.MakeSeed(), stripes: make([]sync.Mutex, n)}
}

// Lock acquires the stripe for key and returns its release func.
func (l *KeyLocks[K]) Lock(key K) func() {
	mu := &l.stripes[maphash.Comparable(l.seed, key)%uint64(len(l.stripes))]
	mu.Lock()
	return mu.Unlock
}
