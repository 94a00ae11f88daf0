// Package ratelimit enforces per-caller, per-action attempt limits for the
// request gate. Counting is delegated to a CounterStore whose increment is
// atomic; the limiter itself holds no cross-request state and performs no
// retries.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"lendgate/internal/platform/privacy"
	"lendgate/internal/ratelimit/metrics"
)

// CounterStore atomically counts one attempt against a key's current
// window and reports the resulting decision.
type CounterStore interface {
	Increment(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error)
}

// Limiter checks per-action attempt limits for callers.
type Limiter struct {
	store    CounterStore
	policies map[string]Policy
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Limiter.
type Option func(*Limiter)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

func WithPolicies(policies map[string]Policy) Option {
	return func(l *Limiter) {
		l.policies = policies
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store CounterStore, opts ...Option) *Limiter {
	l := &Limiter{
		store:    store,
		policies: DefaultPolicies(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PolicyFor returns the configured policy for an action, falling back to
// DefaultPolicy.
func (l *Limiter) PolicyFor(action string) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	p := DefaultPolicy
	p.Action = action
	return p
}

// Check counts one attempt for callerID against the action's policy.
//
// When the counter store itself errors the limiter fails open by default:
// the caller is allowed through and the failure is logged. This is a
// deliberate availability-over-strictness tradeoff; actions configured
// FailClosed reject instead.
func (l *Limiter) Check(ctx context.Context, callerID string, policy Policy) *Decision {
	key := Key(callerID, policy.Action)

	decision, err := l.store.Increment(ctx, key, policy.MaxAttempts, policy.Window)
	if err != nil {
		if l.metrics != nil {
			l.metrics.RecordStoreError(policy.Action)
		}
		if policy.FailClosed {
			if l.logger != nil {
				l.logger.ErrorContext(ctx, "rate limit store error, failing closed",
					"error", err,
					"action", policy.Action,
					"caller_prefix", privacy.AnonymizeIP(callerID),
				)
			}
			return &Decision{Allowed: false, Limit: policy.MaxAttempts, RetryAfter: 60}
		}
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "rate limit store error, failing open",
				"error", err,
				"action", policy.Action,
				"caller_prefix", privacy.AnonymizeIP(callerID),
			)
		}
		return &Decision{
			Allowed:    true,
			Limit:      policy.MaxAttempts,
			Remaining:  policy.MaxAttempts,
			FailedOpen: true,
		}
	}

	if l.metrics != nil {
		l.metrics.RecordCheck(policy.Action, decision.Allowed)
	}
	if !decision.Allowed && l.logger != nil {
		l.logger.WarnContext(ctx, "rate limit exceeded",
			"action", policy.Action,
			"limit", policy.MaxAttempts,
			"window_seconds", int(policy.Window.Seconds()),
		)
	}
	return decision
}
