package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	in := map[string]any{
		"email":        "officer@example.com",
		"password":     "hunter2hunter2",
		"mfa_token":    "123456",
		"new_password": "An0ther!Secret",
		"api_key":      "sk-live-abc",
	}

	out := Sanitize(in)

	assert.Equal(t, "officer@example.com", out["email"])
	assert.Equal(t, "[REDACTED]", out["password"])
	assert.Equal(t, "[REDACTED]", out["mfa_token"])
	assert.Equal(t, "[REDACTED]", out["new_password"])
	assert.Equal(t, "[REDACTED]", out["api_key"])

	// input untouched
	assert.Equal(t, "hunter2hunter2", in["password"])
}

func TestSanitizeAnonymizesIPKeys(t *testing.T) {
	out := Sanitize(map[string]any{"ip_address": "203.0.113.47"})
	assert.Equal(t, "203.0.113.0", out["ip_address"])
}

func TestSanitizeTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("x", MaxValueLength+100)
	out := Sanitize(map[string]any{"notes": long})
	got := out["notes"].(string)
	assert.True(t, strings.HasSuffix(got, "...(truncated)"))
	assert.LessOrEqual(t, len(got), MaxValueLength+len("...(truncated)"))
}

func TestSanitizeNested(t *testing.T) {
	out := Sanitize(map[string]any{
		"details": map[string]any{"session_token": "abc", "reason": "ok"},
	})
	nested := out["details"].(map[string]any)
	assert.Equal(t, "[REDACTED]", nested["session_token"])
	assert.Equal(t, "ok", nested["reason"])
}

func TestSanitizeNil(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
}
