package storage

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
)

type record struct {
	n    int
	tags []string
}

func (r *record) Clone() *record {
	if r == nil {
		return nil
	}
	cpy := *r
	cpy.tags = append([]string(nil), r.tags...)
	return &cpy
}

func TestAddDoesNotOverwrite(t *testing.T) {
	s := New[string, *record](4)
	if err := s.Add("a", &record{n: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add("a", &record{n: 2}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, err := s.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.n != 1 {
		t.Fatalf("value overwritten: %d", got.n)
	}
}

func TestConcurrentAddSameKey(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := New[int, int](8)
		var wg sync.WaitGroup
		var ok, dup atomic.Int32
		start := make(chan struct{})
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func(v int) {
				defer wg.Done()
				<-start
				switch err := s.Add(7, v); {
				case err == nil:
					ok.Add(1)
				case errors.Is(err, ErrAlreadyExists):
					dup.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		close(start)
		wg.Wait()
		if ok.Load() != 1 || dup.Load() != 1 {
			t.Fatalf("round %d: expected 1 success and 1 duplicate, got %d/%d", round, ok.Load(), dup.Load())
		}
	}
}

func TestGetNotFound(t *testing.T) {
	s := New[string, int](0)
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	s := New[string, *record](2)
	orig := &record{n: 1, tags: []string{"x"}}
	if err := s.Add("k", orig); err != nil {
		t.Fatalf("add: %v", err)
	}
	orig.tags[0] = "mutated-after-add"

	got, _ := s.Get("k")
	got.n = 42
	got.tags[0] = "mutated-after-get"

	again, _ := s.Get("k")
	if again.n != 1 || again.tags[0] != "x" {
		t.Fatalf("stored copy changed: %#v", again)
	}
}

func TestUpdateUpserts(t *testing.T) {
	s := New[string, int](2)
	s.Update("k", 1)
	s.Update("k", 2)
	v, err := s.Get("k")
	if err != nil || v != 2 {
		t.Fatalf("unexpected value %d err %v", v, err)
	}
}

func TestMutateSerializesReadModifyWrite(t *testing.T) {
	s := New[string, *record](4)
	if err := s.Add("k", &record{}); err != nil {
		t.Fatalf("add: %v", err)
	}
	const workers = 64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Mutate("k", func(r *record) (*record, error) {
				r.n++
				return r, nil
			})
			if err != nil {
				t.Errorf("mutate: %v", err)
			}
		}()
	}
	wg.Wait()
	got, _ := s.Get("k")
	if got.n != workers {
		t.Fatalf("lost updates: expected %d, got %d", workers, got.n)
	}
}

func TestMutateErrorWritesNothing(t *testing.T) {
	s := New[string, *record](1)
	_ = s.Add("k", &record{n: 1})
	boom := errors.New("boom")
	_, err := s.Mutate("k", func(r *record) (*record, error) {
		r.n = 100
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	got, _ := s.Get("k")
	if got.n != 1 {
		t.Fatalf("failed mutate wrote %d", got.n)
	}
	if _, err := s.Mutate("missing", func(r *record) (*record, error) { return r, nil }); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteIf(t *testing.T) {
	s := New[string, int](2)
	s.Update("k", 5)
	if s.DeleteIf("k", func(v int) bool { return v == 4 }) {
		t.Fatalf("deleted despite mismatch")
	}
	if !s.DeleteIf("k", func(v int) bool { return v == 5 }) {
		t.Fatalf("expected delete")
	}
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected key gone, got %v", err)
	}
	if s.DeleteIf("k", nil) {
		t.Fatalf("delete of missing key reported true")
	}
}

func TestSearch(t *testing.T) {
	s := New[int, int](3)
	for i := 0; i < 20; i++ {
		s.Update(i, i)
	}
	evens := s.Search(func(v int) bool { return v%2 == 0 })
	sort.Ints(evens)
	if len(evens) != 10 || evens[0] != 0 || evens[9] != 18 {
		t.Fatalf("unexpected search result: %v", evens)
	}
	if all := s.Search(nil); len(all) != 20 || s.Len() != 20 {
		t.Fatalf("expected 20 values, got %d (len %d)", len(all), s.Len())
	}
}

func TestSearchDuringWrites(t *testing.T) {
	s := New[int, *record](8)
	for i := 0; i < 100; i++ {
		s.Update(i, &record{n: i})
	}
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = s.Mutate(i%100, func(r *record) (*record, error) {
				r.tags = append(r.tags, "t")
				return r, nil
			})
		}
	}()
	for i := 0; i < 50; i++ {
		if got := s.Search(nil); len(got) != 100 {
			close(stop)
			wg.Wait()
			t.Fatalf("expected 100 values, got %d", len(got))
		}
	}
	close(stop)
	wg.Wait()
}

func TestKeyLocks(t *testing.T) {
	l := NewKeyLocks[string](4)
	var wg sync.WaitGroup
	var inside, maxInside atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("same")
			defer unlock()
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			inside.Add(-1)
		}()
	}
	wg.Wait()
	if maxInside.Load() != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxInside.Load())
	}
}
