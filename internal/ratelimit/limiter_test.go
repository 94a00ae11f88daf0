package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Increment(context.Context, string, int, time.Duration) (*Decision, error) {
	return nil, errors.New("connection refused")
}

func newTestLimiter(store CounterStore) *Limiter {
	return New(store, WithLogger(slog.New(slog.DiscardHandler)))
}

func TestCheckDeniesAboveLimit(t *testing.T) {
	limiter := newTestLimiter(NewInMemoryCounterStore())
	policy := Policy{Action: ActionUserCreation, MaxAttempts: 10, Window: time.Hour}

	for i := range 10 {
		decision := limiter.Check(t.Context(), "admin-1", policy)
		require.True(t, decision.Allowed, "attempt %d should be allowed", i+1)
		assert.Equal(t, 10-(i+1), decision.Remaining)
	}

	decision := limiter.Check(t.Context(), "admin-1", policy)
	assert.False(t, decision.Allowed)
	assert.Positive(t, decision.RetryAfter)
}

func TestCheckWindowReset(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	store := NewInMemoryCounterStore().WithClock(func() time.Time { return clock() })
	limiter := newTestLimiter(store)
	policy := Policy{Action: ActionUserDeletion, MaxAttempts: 5, Window: time.Hour}

	for range 5 {
		require.True(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
	}
	require.False(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)

	// Past the window the counter resets and attempts are allowed again.
	now = now.Add(time.Hour + time.Minute)
	assert.True(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
}

func TestCheckIsolatesCallersAndActions(t *testing.T) {
	limiter := newTestLimiter(NewInMemoryCounterStore())
	policy := Policy{Action: ActionUserDeletion, MaxAttempts: 1, Window: time.Hour}

	require.True(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
	require.False(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)

	// Different caller, same action: unaffected.
	assert.True(t, limiter.Check(t.Context(), "admin-2", policy).Allowed)

	// Same caller, different action: unaffected.
	other := Policy{Action: ActionPasswordReset, MaxAttempts: 1, Window: time.Hour}
	assert.True(t, limiter.Check(t.Context(), "admin-1", other).Allowed)
}

func TestCheckFailsOpenOnStoreError(t *testing.T) {
	limiter := newTestLimiter(failingStore{})
	policy := Policy{Action: ActionUserCreation, MaxAttempts: 10, Window: time.Hour}

	decision := limiter.Check(t.Context(), "admin-1", policy)
	assert.True(t, decision.Allowed)
	assert.True(t, decision.FailedOpen)
}

func TestCheckFailsClosedWhenConfigured(t *testing.T) {
	limiter := newTestLimiter(failingStore{})
	policy := Policy{Action: ActionUserDeletion, MaxAttempts: 5, Window: time.Hour, FailClosed: true}

	decision := limiter.Check(t.Context(), "admin-1", policy)
	assert.False(t, decision.Allowed)
	assert.False(t, decision.FailedOpen)
}

func TestPolicyForFallsBack(t *testing.T) {
	limiter := newTestLimiter(NewInMemoryCounterStore())

	assert.Equal(t, 5, limiter.PolicyFor(ActionUserDeletion).MaxAttempts)

	p := limiter.PolicyFor("unknown_action")
	assert.Equal(t, "unknown_action", p.Action)
	assert.Equal(t, DefaultPolicy.MaxAttempts, p.MaxAttempts)
}

func TestInMemoryStoreConcurrentIncrements(t *testing.T) {
	store := NewInMemoryCounterStore()
	policy := Policy{Action: ActionAuditWrite, MaxAttempts: 100, Window: time.Hour}
	limiter := newTestLimiter(store)

	var wg sync.WaitGroup
	allowed := make(chan bool, 200)
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- limiter.Check(context.Background(), "writer", policy).Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	assert.Equal(t, 100, count, "exactly the limit must be admitted")
}

func TestBlockedRecordKeepsDenyingWithinWindow(t *testing.T) {
	now := time.Now()
	store := NewInMemoryCounterStore().WithClock(func() time.Time { return now })
	limiter := newTestLimiter(store)
	policy := Policy{Action: ActionUserDeletion, MaxAttempts: 1, Window: time.Hour}

	require.True(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
	require.False(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
	// Still blocked on subsequent attempts inside the window.
	assert.False(t, limiter.Check(t.Context(), "admin-1", policy).Allowed)
}
