package ratelimit

import (
	"context"
	"sync"
	"time"
)

// InMemoryCounterStore implements CounterStore with fixed-window counters
// guarded by a mutex. Suitable for single-instance deployments and tests;
// multi-instance deployments use the Postgres or Redis store.
type InMemoryCounterStore struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

func NewInMemoryCounterStore() *InMemoryCounterStore {
	return &InMemoryCounterStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (s *InMemoryCounterStore) WithClock(now func() time.Time) *InMemoryCounterStore {
	s.now = now
	return s
}

// Increment atomically counts one attempt against the key's current window
// and reports whether it stayed within the limit. Records are created on
// first sight and retained after their window lapses.
func (s *InMemoryCounterStore) Increment(_ context.Context, key string, limit int, window time.Duration) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, found := s.records[key]
	if !found {
		rec = &Record{Identifier: key, WindowStart: now}
		s.records[key] = rec
	}

	// Standing block takes precedence over window arithmetic.
	if rec.IsBlocked && rec.BlockUntil != nil && now.Before(*rec.BlockUntil) {
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    *rec.BlockUntil,
			RetryAfter: retryAfterSeconds(*rec.BlockUntil, now),
		}, nil
	}

	// Window lapsed: reset the counter, keep the record.
	if now.After(rec.WindowStart.Add(window)) {
		rec.AttemptCount = 0
		rec.WindowStart = now
		rec.IsBlocked = false
		rec.BlockUntil = nil
	}

	rec.AttemptCount++
	resetAt := rec.WindowStart.Add(window)

	if rec.AttemptCount > limit {
		rec.IsBlocked = true
		rec.BlockUntil = &resetAt
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}

	return &Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - rec.AttemptCount,
		ResetAt:   resetAt,
	}, nil
}

func retryAfterSeconds(resetAt, now time.Time) int {
	seconds := int(resetAt.Sub(now).Seconds())
	if seconds < 0 {
		return 0
	}
	return seconds
}
