// Package stepup verifies second-factor tokens for destructive and
// administrative operations. Tokens are bound to one operation type: a
// token minted for a password reset does not verify for a user deletion.
package stepup

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/security"
	dErrors "lendgate/pkg/domain-errors"
)

// Operation names the privileged action a token authorizes. Always passed
// explicitly; it is never inferred from the request path.
type Operation string

const (
	OpUserCreation  Operation = "user_creation"
	OpUserUpdate    Operation = "user_update"
	OpUserDeletion  Operation = "user_deletion"
	OpPasswordReset Operation = "password_reset"
)

func (o Operation) IsValid() bool {
	switch o {
	case OpUserCreation, OpUserUpdate, OpUserDeletion, OpPasswordReset:
		return true
	}
	return false
}

// Verifier checks a second-factor token for a caller and operation.
type Verifier interface {
	Verify(ctx context.Context, token, userID string, op Operation) error
}

// HMACVerifier implements operation-bound step-up tokens as HMAC-SHA256
// over (user, operation, expiry). Stateless: no replay counter is kept,
// the short TTL and operation binding bound the exposure.
type HMACVerifier struct {
	secret   []byte
	ttl      time.Duration
	recorder *security.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*HMACVerifier)

func WithLogger(log *slog.Logger) Option {
	return func(v *HMACVerifier) { v.logger = log }
}

func WithRecorder(rec *security.Recorder) Option {
	return func(v *HMACVerifier) { v.recorder = rec }
}

func WithTTL(ttl time.Duration) Option {
	return func(v *HMACVerifier) { v.ttl = ttl }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(v *HMACVerifier) { v.now = now }
}

const defaultTTL = 5 * time.Minute

func NewHMACVerifier(secret []byte, opts ...Option) *HMACVerifier {
	v := &HMACVerifier{
		secret: secret,
		ttl:    defaultTTL,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Issue mints a token for the given caller and operation, valid for the
// configured TTL.
func (v *HMACVerifier) Issue(userID string, op Operation) (string, error) {
	if userID == "" || !op.IsValid() {
		return "", fmt.Errorf("issue step-up token: invalid subject or operation")
	}
	expiry := v.now().Add(v.ttl).Unix()
	payload := fmt.Sprintf("%s\n%s\n%d", userID, op, expiry)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(payload))
	return encoded + "." + v.sign(payload), nil
}

// Verify checks the token against the caller and operation. Any failure
// records a high-severity security event and returns an MFA error; the
// caller cannot distinguish a wrong operation from an expired token.
func (v *HMACVerifier) Verify(ctx context.Context, token, userID string, op Operation) error {
	if err := v.verify(token, userID, op); err != nil {
		v.reportFailure(ctx, userID, op, err)
		return dErrors.Wrap(err, dErrors.CodeMFAFailed, "step-up verification failed")
	}
	return nil
}

func (v *HMACVerifier) verify(token, userID string, op Operation) error {
	if token == "" {
		return fmt.Errorf("missing step-up token")
	}
	encoded, mac, ok := strings.Cut(token, ".")
	if !ok {
		return fmt.Errorf("malformed step-up token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("malformed step-up token payload")
	}
	payload := string(raw)

	if !hmac.Equal([]byte(v.sign(payload)), []byte(mac)) {
		return fmt.Errorf("step-up token signature mismatch")
	}

	parts := strings.Split(payload, "\n")
	if len(parts) != 3 {
		return fmt.Errorf("malformed step-up token payload")
	}
	if parts[0] != userID {
		return fmt.Errorf("step-up token subject mismatch")
	}
	if Operation(parts[1]) != op {
		return fmt.Errorf("step-up token operation mismatch")
	}
	expiry, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("malformed step-up token expiry")
	}
	if v.now().Unix() > expiry {
		return fmt.Errorf("step-up token expired")
	}
	return nil
}

func (v *HMACVerifier) sign(payload string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (v *HMACVerifier) reportFailure(ctx context.Context, userID string, op Operation, cause error) {
	v.logger.WarnContext(ctx, "step-up verification failed",
		"user_id", userID,
		"operation", string(op),
		"reason", cause.Error(),
	)
	if v.recorder == nil {
		return
	}
	meta := metadata.FromContext(ctx)
	event := security.NewEvent(security.EventMFAFailure, security.SeverityHigh)
	event.UserID = userID
	event.IPAddress = meta.ClientIP
	event.UserAgent = meta.UserAgent
	event.Details = map[string]any{
		"operation": string(op),
		"reason":    cause.Error(),
	}
	v.recorder.Record(ctx, event)
}
