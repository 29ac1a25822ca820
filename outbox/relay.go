package outbox

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Flusher republishes every aggregate that still holds pending events and
// reports how many events left the process.
type Flusher interface {
	FlushPending(ctx context.Context) (int, error)
}

// RelayConfig tunes the retry loop.
type RelayConfig struct {
	Interval     time.Duration
	RetryInitial time.Duration
	RetryMax     time.Duration
	Timeout      time.Duration
}

func (c RelayConfig) withDefaults() RelayConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 250 * time.Millisecond
	}
	if c.RetryMax <= 0 {
		c.RetryMax = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Relay periodically flushes events whose delivery failed, backing off
// while the sink keeps failing.
type Relay struct {
	cfg     RelayConfig
	flusher Flusher
	logger  *log.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu          sync.Mutex
	closing     bool
	attempt     int
	lastErr     string
	nextAttempt time.Time
	flushed     atomic.Uint64
	started     time.Time
}

func NewRelay(cfg RelayConfig, flusher Flusher, logger *log.Logger) *Relay {
	if flusher == nil {
		panic("outbox: flusher is required")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Relay{
		cfg:     cfg.withDefaults(),
		flusher: flusher,
		logger:  logger,
		stopCh:  make(chan struct{}),
		started: time.Now().UTC(),
	}
}

// Start launches the relay loop.
func (r *Relay) Start() {
	r.mu.Lock()
	r.nextAttempt = time.Now().Add(r.cfg.Interval)
	r.mu.Unlock()
	r.wg.Add(1)
	go r.loop()
}

// Stop halts the loop and waits for an in-flight flush to finish.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return
	}
	r.closing = true
	close(r.stopCh)
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Relay) loop() {
	defer r.wg.Done()
	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-timer.C:
		}
		timer.Reset(r.flushOnce())
	}
}

func (r *Relay) flushOnce() time.Duration {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.Timeout)
	defer cancel()

	n, err := r.flusher.FlushPending(ctx)
	r.flushed.Add(uint64(n))

	r.mu.Lock()
	defer r.mu.Unlock()
	var delay time.Duration
	if err != nil {
		r.attempt++
		r.lastErr = err.Error()
		delay = exponentialBackoff(r.attempt, r.cfg.RetryInitial, r.cfg.RetryMax)
		r.logger.WithError(err).WithFields(log.Fields{"attempt": r.attempt, "retry_in": delay, "flushed": n}).Warn("outbox relay flush failed")
	} else {
		if r.attempt > 0 {
			r.logger.WithField("flushed", n).Info("outbox relay recovered")
		}
		r.attempt = 0
		r.lastErr = ""
		delay = r.cfg.Interval
	}
	r.nextAttempt = time.Now().Add(delay)
	return delay
}

func exponentialBackoff(attempt int, initial, max time.Duration) time.Duration {
	if initial <= 0 {
		initial = time.Second
	}
	if attempt <= 0 {
		return initial
	}
	if max <= 0 {
		max = 10 * time.Second
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}

// RelayStats is the snapshot served on the outbox stats endpoint.
type RelayStats struct {
	Flushed     uint64    `json:"flushed"`
	Attempt     int       `json:"attempt"`
	LastError   string    `json:"lastError,omitempty"`
	NextAttempt time.Time `json:"nextAttempt"`
	StartedAt   time.Time `json:"startedAt"`
}

func (r *Relay) Stats() RelayStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RelayStats{
		Flushed:     r.flushed.Load(),
		Attempt:     r.attempt,
		LastError:   r.lastErr,
		NextAttempt: r.nextAttempt,
		StartedAt:   r.started,
	}
}
