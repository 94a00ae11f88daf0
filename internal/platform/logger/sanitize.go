package logger

import (
	"strings"

	"lendgate/internal/platform/privacy"
)

// MaxValueLength caps individual sanitized values so a single oversized
// field cannot flood the log pipeline or the security-event store.
const MaxValueLength = 500

const redacted = "[REDACTED]"

// secretKeys is a deny-list of payload keys whose values must never be
// logged or persisted, matched as substrings of the lowercased key.
var secretKeys = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"api_key",
	"apikey",
	"mfa",
	"otp",
	"ssn",
	"credit_card",
	"account_number",
}

// ipKeys are payload keys holding IP addresses; their values are
// anonymized rather than redacted so events stay correlatable.
var ipKeys = []string{
	"ip", "ip_address", "client_ip", "remote_addr",
}

// Sanitize returns a copy of details safe for logging and persistence.
// Secret-bearing keys are redacted, IP-valued keys are anonymized, and
// every string value is truncated to MaxValueLength. Nested maps are
// sanitized recursively. The input map is never mutated.
func Sanitize(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = sanitizeValue(k, v)
	}
	return out
}

func sanitizeValue(key string, v any) any {
	lower := strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(lower, s) {
			return redacted
		}
	}

	switch val := v.(type) {
	case string:
		for _, ik := range ipKeys {
			if lower == ik {
				return privacy.AnonymizeIP(val)
			}
		}
		if len(val) > MaxValueLength {
			return val[:MaxValueLength] + "...(truncated)"
		}
		return val
	case map[string]any:
		return Sanitize(val)
	default:
		return v
	}
}
