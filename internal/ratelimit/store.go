package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultIdleWindow    = 10 * time.Minute
)

// Store holds one TokenBucket per key. Buckets are created lazily on first
// request and evicted by a background sweep once they are full and idle,
// bounding memory growth from one-shot or abandoned keys.
type Store struct {
	sweepInterval time.Duration
	idleWindow    time.Duration

	mu      sync.RWMutex
	buckets map[string]*TokenBucket

	done   chan struct{}
	closed bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSweepInterval sets how often the background sweep runs. Set to 0 to
// disable the sweep goroutine.
func WithSweepInterval(interval time.Duration) StoreOption {
	return func(s *Store) {
		s.sweepInterval = interval
	}
}

// WithIdleWindow sets how long a fully recovered bucket may sit unused before
// the sweep evicts it.
func WithIdleWindow(window time.Duration) StoreOption {
	return func(s *Store) {
		s.idleWindow = window
	}
}

// NewStore creates a bucket store and starts its sweep goroutine. The caller
// must Shutdown the store on process teardown so the sweep timer does not
// keep the process alive.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sweepInterval: defaultSweepInterval,
		idleWindow:    defaultIdleWindow,
		buckets:       make(map[string]*TokenBucket),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.sweepInterval > 0 {
		go s.sweepLoop()
	}

	return s
}

// GetOrCreate returns the bucket for key, constructing a full one on first
// use. Capacity and refillRate apply only on creation; an existing bucket
// keeps the parameters it was created with.
func (s *Store) GetOrCreate(key string, capacity int, refillRate float64) *TokenBucket {
	s.mu.RLock()
	b, exists := s.buckets[key]
	s.mu.RUnlock()
	if exists {
		return b
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have created it while we waited for the lock.
	if b, exists = s.buckets[key]; exists {
		return b
	}

	b = newTokenBucket(capacity, refillRate, time.Now())
	s.buckets[key] = b
	return b
}

// Sweep evicts every bucket that is at full capacity and has not been
// refilled within the idle window. A bucket with a pending deficit, or one
// touched recently, is retained. Returns the number of buckets removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.idle(now, s.idleWindow) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live buckets.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buckets)
}

// Keys returns a snapshot of the live bucket keys, for reporting.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.buckets))
	for key := range s.buckets {
		keys = append(keys, key)
	}
	return keys
}

// Shutdown stops the sweep goroutine and clears all bucket state. Safe to
// call more than once. Not safe to call concurrently with admission checks.
func (s *Store) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.done)
	}
	s.buckets = make(map[string]*TokenBucket)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if removed := s.Sweep(time.Now()); removed > 0 {
				slog.Debug("Swept idle rate limit buckets", "removed", removed, "remaining", s.Len())
			}
		}
	}
}
