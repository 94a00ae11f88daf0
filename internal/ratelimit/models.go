package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// Policy is the per-action rate limit configuration. The numbers are
// configuration, not invariants; defaults live in DefaultPolicies.
type Policy struct {
	Action      string
	MaxAttempts int
	Window      time.Duration
	// FailClosed rejects the request when the counter store itself errors.
	// Default is fail-open: infra failure must not take admin tooling down.
	FailClosed bool
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when denied
	// FailedOpen marks decisions where the store errored and policy let the
	// request through. Surfaced for logging and metrics only.
	FailedOpen bool `json:"-"`
}

// Record is the persisted counter state for one caller+action identifier.
// Records are retained after their window lapses for audit purposes.
type Record struct {
	Identifier   string
	AttemptCount int
	WindowStart  time.Time
	BlockUntil   *time.Time
	IsBlocked    bool
}

// Key builds the composite counter key for a caller and action. Delimiter
// characters in the caller segment are escaped so a crafted caller ID cannot
// collide with another caller's bucket.
func Key(callerID, action string) string {
	return fmt.Sprintf("%s:%s", sanitizeKeySegment(callerID), sanitizeKeySegment(action))
}

// sanitizeKeySegment escapes delimiter characters in key segments.
// Order matters: escape the escape character first.
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}

// Actions known to the gate. Policy lookups fall back to DefaultPolicy for
// anything not listed here.
const (
	ActionUserCreation  = "user_creation"
	ActionUserUpdate    = "user_update"
	ActionUserDeletion  = "user_deletion"
	ActionPasswordReset = "password_reset"
	ActionListUsers     = "list_users"
	ActionAuditWrite    = "audit_write"
	ActionLedgerWrite   = "ledger_write"
	ActionDocumentScan  = "document_scan"
)

// DefaultPolicies mirrors the production policy table.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ActionUserCreation:  {Action: ActionUserCreation, MaxAttempts: 10, Window: time.Hour},
		ActionUserUpdate:    {Action: ActionUserUpdate, MaxAttempts: 10, Window: time.Hour},
		ActionUserDeletion:  {Action: ActionUserDeletion, MaxAttempts: 5, Window: time.Hour},
		ActionPasswordReset: {Action: ActionPasswordReset, MaxAttempts: 10, Window: time.Hour},
		ActionListUsers:     {Action: ActionListUsers, MaxAttempts: 100, Window: time.Hour},
		ActionAuditWrite:    {Action: ActionAuditWrite, MaxAttempts: 100, Window: time.Hour},
		ActionLedgerWrite:   {Action: ActionLedgerWrite, MaxAttempts: 50, Window: time.Hour},
		ActionDocumentScan:  {Action: ActionDocumentScan, MaxAttempts: 30, Window: time.Hour},
	}
}

// DefaultPolicy applies to actions without an explicit entry.
var DefaultPolicy = Policy{Action: "default", MaxAttempts: 60, Window: time.Hour}
