package security

import (
	"time"

	"github.com/google/uuid"
)

// Severity ranks security events for triage and alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Event is one append-only security event: a block, an MFA failure, a
// malware detection, a policy violation. Events are never mutated or
// deleted once recorded.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"event_type"`
	Severity  Severity       `json:"severity"`
	UserID    string         `json:"user_id,omitempty"`
	IPAddress string         `json:"ip_address,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewEvent builds an event with identity and timestamp assigned.
func NewEvent(eventType string, severity Severity) Event {
	if !severity.IsValid() {
		severity = SeverityMedium
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}
}

// Well-known event types recorded by the gate and its collaborators.
const (
	EventRateLimitExceeded    = "rate_limit_exceeded"
	EventMFAFailure           = "mfa_verification_failed"
	EventHighRiskRequest      = "high_risk_request"
	EventGeoBlocked           = "geo_blocked"
	EventMalwareDetected      = "malware_detected"
	EventPolicyViolation      = "policy_violation"
	EventSelfTargetRejected   = "self_target_rejected"
	EventPrivilegedOperation  = "privileged_operation"
	EventAuthorizationFailure = "authorization_failure"
)
