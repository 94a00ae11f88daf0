package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendgate/internal/admin"
	"lendgate/internal/audit"
	"lendgate/internal/docscan"
	"lendgate/internal/gate"
	"lendgate/internal/georisk"
	"lendgate/internal/ledger"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/ratelimit"
	"lendgate/internal/security"
	"lendgate/internal/stepup"
	"lendgate/internal/token"
)

const strongPassword = "Str0ng-Admin-Pass!"

type env struct {
	router     *chi.Mux
	tokens     *token.Service
	verifier   *stepup.HMACVerifier
	users      *admin.Service
	userStore  *admin.InMemoryStore
	eventStore *security.InMemoryStore
	auditStore *audit.InMemoryStore
	adminToken string
	adminID    string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	discard := slog.New(slog.DiscardHandler)

	tokens := token.NewService("router-test-key", time.Hour)
	eventStore := security.NewInMemoryStore()
	recorder := security.NewRecorder(eventStore, discard)
	auditStore := audit.NewInMemoryStore()
	auditor := audit.NewPublisher(auditStore, audit.WithLogger(discard))
	verifier := stepup.NewHMACVerifier([]byte("router-test-stepup"),
		stepup.WithLogger(discard),
		stepup.WithRecorder(recorder),
	)
	limiter := ratelimit.New(ratelimit.NewInMemoryCounterStore(), ratelimit.WithLogger(discard))
	userStore := admin.NewInMemoryStore()
	users := admin.NewService(userStore, admin.WithLogger(discard))
	g := gate.New(limiter, verifier, auditor, gate.WithLogger(discard), gate.WithRecorder(recorder))
	scorer := georisk.NewScorer(nil, georisk.NewInMemoryReputationStore(),
		georisk.WithLogger(discard),
		georisk.WithRecorder(recorder),
	)

	router := NewRouter(Config{
		Logger:            discard,
		TokenValidator:    tokens,
		Metadata:          metadata.New(metadata.Config{TrustAllProxies: true}),
		AllowedOrigin:     "*",
		Gate:              g,
		Users:             users,
		Audits:            auditor,
		Events:            eventStore,
		Ledger:            ledger.NewService(ledger.NewInMemoryStore(), ledger.WithLogger(discard)),
		Scanner:           docscan.New(docscan.WithLogger(discard), docscan.WithRecorder(recorder)),
		Limiter:           limiter,
		Scorer:            scorer,
		GeoPolicy:         georisk.PermissivePolicy(),
		GeoEnhancedPolicy: georisk.StandardPolicy(),
		Health: func(context.Context) map[string]string {
			return map[string]string{"store": "ok"}
		},
	})

	adminUser, err := users.Create(t.Context(), admin.CreateInput{
		Email:    "root-admin@example.com",
		Password: strongPassword,
		Role:     admin.RoleAdmin,
	})
	require.NoError(t, err)
	adminToken, err := tokens.Issue(adminUser.ID, adminUser.Email, "admin")
	require.NoError(t, err)

	return &env{
		router:     router,
		tokens:     tokens,
		verifier:   verifier,
		users:      users,
		userStore:  userStore,
		eventStore: eventStore,
		auditStore: auditStore,
		adminToken: adminToken,
		adminID:    adminUser.ID,
	}
}

func (e *env) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/125.0 Safari/537.36")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) mfa(t *testing.T, op stepup.Operation) string {
	t.Helper()
	tok, err := e.verifier.Issue(e.adminID, op)
	require.NoError(t, err)
	return tok
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateUserWeakPasswordRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/users", e.adminToken, map[string]any{
		"email":     "new-user@example.com",
		"password":  "abc",
		"mfa_token": e.mfa(t, stepup.OpUserCreation),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.True(t, strings.HasPrefix(body["error"].(string), "Invalid input provided"))

	// No user was created.
	views, err := e.users.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, views, 1, "only the seeded admin exists")
}

func TestCreateUserRateLimitEleventhAttempt(t *testing.T) {
	e := newEnv(t)
	mfaToken := e.mfa(t, stepup.OpUserCreation)

	for i := range 10 {
		rec := e.do(t, http.MethodPost, "/admin/users", e.adminToken, map[string]any{
			"email":     "bulk-" + string(rune('a'+i)) + "@example.com",
			"password":  strongPassword,
			"mfa_token": mfaToken,
		})
		require.Equal(t, http.StatusCreated, rec.Code, "attempt %d", i+1)
	}

	rec := e.do(t, http.MethodPost, "/admin/users", e.adminToken, map[string]any{
		"email":     "bulk-overflow@example.com",
		"password":  strongPassword,
		"mfa_token": mfaToken,
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	views, err := e.users.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, views, 11, "seeded admin plus exactly ten created users")
}

func TestCreateUserRequiresAuth(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/users", "", map[string]any{
		"email":    "x@example.com",
		"password": strongPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_FAILED", decodeMap(t, rec)["code"])
}

func TestCreateUserRequiresAdminRole(t *testing.T) {
	e := newEnv(t)
	viewerToken, err := e.tokens.Issue("viewer-1", "viewer@example.com", "viewer")
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/admin/users", viewerToken, map[string]any{
		"email":     "x@example.com",
		"password":  strongPassword,
		"mfa_token": "irrelevant",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeMap(t, rec)["code"])
}

func TestDeleteUserMissingMFAToken(t *testing.T) {
	e := newEnv(t)
	victim, err := e.users.Create(t.Context(), admin.CreateInput{
		Email: "victim@example.com", Password: strongPassword,
	})
	require.NoError(t, err)

	for range 2 {
		rec := e.do(t, http.MethodDelete, "/admin/users/"+victim.ID, e.adminToken, map[string]any{})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "MFA_VERIFICATION_FAILED", decodeMap(t, rec)["code"])
	}

	_, err = e.users.Get(t.Context(), victim.ID)
	assert.NoError(t, err, "user must survive rejected deletions")
}

func TestDeleteUserSelfTargetRejected(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodDelete, "/admin/users/"+e.adminID, e.adminToken, map[string]any{
		"mfa_token": e.mfa(t, stepup.OpUserDeletion),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERMISSION_DENIED", decodeMap(t, rec)["code"])

	_, err := e.users.Get(t.Context(), e.adminID)
	assert.NoError(t, err)

	events, err := e.eventStore.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, security.EventSelfTargetRejected, events[0].Type)
}

func TestDeleteUserHappyPath(t *testing.T) {
	e := newEnv(t)
	victim, err := e.users.Create(t.Context(), admin.CreateInput{
		Email: "victim@example.com", Password: strongPassword,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodDelete, "/admin/users/"+victim.ID, e.adminToken, map[string]any{
		"mfa_token": e.mfa(t, stepup.OpUserDeletion),
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err = e.users.Get(t.Context(), victim.ID)
	assert.Error(t, err)
}

func TestUpdateAndResetPassword(t *testing.T) {
	e := newEnv(t)
	target, err := e.users.Create(t.Context(), admin.CreateInput{
		Email: "target@example.com", Password: strongPassword,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPatch, "/admin/users/"+target.ID, e.adminToken, map[string]any{
		"mfa_token": e.mfa(t, stepup.OpUserUpdate),
		"firstName": "Renamed",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/admin/users/"+target.ID+"/reset-password", e.adminToken, map[string]any{
		"mfa_token":    e.mfa(t, stepup.OpPasswordReset),
		"new_password": "An0ther-Good-Pass!",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	fresh, err := e.users.Get(t.Context(), target.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.FirstName)
	assert.True(t, fresh.CheckPassword("An0ther-Good-Pass!"))
}

func TestCreateUserAuditTrailMasksEmail(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/admin/users", e.adminToken, map[string]any{
		"email":     "new-officer@example.com",
		"password":  strongPassword,
		"mfa_token": e.mfa(t, stepup.OpUserCreation),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	events, err := e.auditStore.ListRecent(t.Context(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "n***@example.com", events[0].NewValues["email"])
}

func TestGeoSecurityBlocksTorUserAgent(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/geo-security", nil)
	req.Header.Set("User-Agent", "Tor Browser")
	req.Header.Set(metadata.CountryHeader, "US")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, false, body["allowed"])
}

func TestGeoSecurityAllowsCleanHomeCountryRequest(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/geo-security", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15")
	req.Header.Set(metadata.CountryHeader, "US")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["allowed"])
	assert.Equal(t, "low", body["security_level"])
}

func TestEnhancedGeoSecuritySanctionedCountry(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/geo-security/enhanced", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15")
	req.Header.Set(metadata.CountryHeader, "KP")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	body := decodeMap(t, rec)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "critical", body["security_level"])
}

func TestGeoSecurityUnresolvedCountryReportedUnknown(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/geo-security/enhanced", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "UNKNOWN", body["country_code"])
	assert.Equal(t, true, body["allowed"])
}

func TestAuditLogWrite(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/audit-log", e.adminToken, map[string]any{
		"action":     "loan_status_changed",
		"table_name": "loan_applications",
		"new_values": map[string]any{"status": "approved", "password": "should-be-redacted"},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["audit_log_id"])
}

func TestAuditLogValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/audit-log", e.adminToken, map[string]any{
		"table_name": "loan_applications",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeMap(t, rec)["code"])
}

func TestLedgerHashAnonymousWrite(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/ledger/hash", "", map[string]any{
		"recordType": "loan_application",
		"recordId":   "loan-77",
		"data":       map[string]any{"amount": 125000},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["blockchainRecordId"])
	assert.NotEmpty(t, body["dataHash"])
	assert.Equal(t, "verified", body["verificationStatus"])
	assert.Equal(t, float64(1), body["blockNumber"])
}

func TestLedgerVerifyRoundTrip(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/ledger/hash", "", map[string]any{
		"recordType": "loan_application",
		"recordId":   "loan-78",
		"data":       map[string]any{"amount": 98000},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decodeMap(t, rec)["blockchainRecordId"].(string)

	rec = e.do(t, http.MethodGet, "/ledger/"+id+"/verify", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, "verified", body["verificationStatus"])
	assert.Equal(t, id, body["blockchainRecordId"])
}

func TestLedgerVerifyUnknownRecord(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/ledger/no-such-record/verify", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeMap(t, rec)["code"])
}

func TestScanDocumentFlagsExecutable(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodPost, "/documents/scan", e.adminToken, map[string]any{
		"file_hash": strings.Repeat("ab", 32),
		"file_name": "paystub.exe",
		"file_size": 2048,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeMap(t, rec)
	assert.Equal(t, false, body["is_safe"])
}

func TestSecurityEventsListingRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	viewerToken, err := e.tokens.Issue("viewer-1", "viewer@example.com", "viewer")
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/admin/security-events", viewerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/admin/security-events", e.adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeMap(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/admin/users", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
