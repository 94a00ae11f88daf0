package georisk

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/security"
)

const (
	chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36"
	torUA    = "Mozilla/5.0 (Windows NT 10.0; rv:109.0) Gecko/20100101 Firefox/115.0 Tor Browser"
)

func newTestScorer(geo Geolocator, rep ReputationStore, opts ...Option) *Scorer {
	opts = append([]Option{WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return NewScorer(geo, rep, opts...)
}

func meta(ip, ua, country string) metadata.Meta {
	return metadata.Meta{ClientIP: ip, UserAgent: ua, EdgeCountry: country}
}

func TestAssessMalformedIPRejectedAsCritical(t *testing.T) {
	scorer := newTestScorer(nil, nil)

	a := scorer.Assess(t.Context(), meta("999.1.2.3", chromeUA, ""), StandardPolicy())
	assert.False(t, a.Allowed)
	assert.Equal(t, LevelCritical, a.Level)
	assert.Contains(t, a.Reasons, ReasonInvalidIP)

	a = scorer.Assess(t.Context(), meta("unknown", chromeUA, ""), StandardPolicy())
	assert.False(t, a.Allowed)
	assert.Contains(t, a.Reasons, ReasonInvalidIP)
}

func TestAssessPrivateNetworkAllowedLowRisk(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())

	for _, ip := range []string{"10.0.0.5", "192.168.1.20", "127.0.0.1", "172.16.3.4"} {
		a := scorer.Assess(t.Context(), meta(ip, chromeUA, ""), StandardPolicy())
		assert.True(t, a.Allowed, "private address %s must be allowed", ip)
		assert.Equal(t, 0, a.Score)
		assert.Equal(t, LevelLow, a.Level)
		assert.Contains(t, a.Reasons, ReasonPrivateNetwork)
	}
}

func TestAssessSanctionedCountryAlwaysBlocked(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())

	for _, country := range []string{"KP", "IR", "SY", "CU", "RU", "BY"} {
		a := scorer.Assess(t.Context(), meta("203.0.113.10", chromeUA, country), StandardPolicy())
		assert.False(t, a.Allowed, "sanctioned country %s must be blocked", country)
		assert.GreaterOrEqual(t, a.Score, 100)
		assert.Contains(t, a.Reasons, ReasonSanctionedCountry)
	}
}

func TestAssessStrictModePenalizesNonAllowlisted(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())
	policy := StandardPolicy().WithStrictMode()

	a := scorer.Assess(t.Context(), meta("203.0.113.10", chromeUA, "BR"), policy)
	assert.Contains(t, a.Reasons, ReasonCountryNotAllowed)
	assert.True(t, a.Allowed, "one non-allowlist signal alone stays under the block threshold")
	assert.Equal(t, 70, a.Score)

	// Same country without strict mode carries no penalty.
	a = scorer.Assess(t.Context(), meta("203.0.113.11", chromeUA, "BR"), StandardPolicy())
	assert.Equal(t, 0, a.Score)
}

func TestAssessUserAgentSignals(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())
	policy := StandardPolicy()

	tests := []struct {
		name   string
		ua     string
		reason string
		score  int
	}{
		{"tor browser", torUA, ReasonAnonymizerUA, 40},
		{"curl", "curl/8.4.0 something longer", ReasonAutomationUA, 50},
		{"headless chrome", chromeUA + " HeadlessChrome/125.0", ReasonAutomationUA, 50},
		{"missing", "", ReasonMissingUA, 30},
		{"too short", "Mozilla", ReasonMissingUA, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := scorer.Assess(t.Context(), meta("203.0.113.50", tt.ua, "US"), policy)
			assert.Contains(t, a.Reasons, tt.reason)
			assert.Equal(t, tt.score, a.Score)
		})
	}
}

func TestAnalyzeUserAgentWordBoundaries(t *testing.T) {
	// "monitor" contains "tor" but is not an anonymizer signal.
	signals := AnalyzeUserAgent("HealthMonitor monitor/1.0 uptime checker probe")
	assert.False(t, signals.Anonymizer)

	signals = AnalyzeUserAgent(torUA)
	assert.True(t, signals.Anonymizer)
}

func TestAssessPermissiveBlocksTorEvenFromHomeCountry(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())

	a := scorer.Assess(t.Context(), meta("198.51.100.7", torUA, "US"), PermissivePolicy())
	assert.False(t, a.Allowed)
	assert.Contains(t, a.Reasons, ReasonAnonymizerUA)
}

func TestAssessTorExitCountryCodeTreatedAsAnonymizer(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())

	a := scorer.Assess(t.Context(), meta("198.51.100.9", chromeUA, "T1"), PermissivePolicy())
	assert.False(t, a.Allowed)
	assert.Contains(t, a.Reasons, ReasonAnonymizerUA)
	assert.Empty(t, a.CountryCode)
}

func TestAssessPermissiveBlocksOutsideHomeCountry(t *testing.T) {
	scorer := newTestScorer(nil, NewInMemoryReputationStore())

	a := scorer.Assess(t.Context(), meta("198.51.100.7", chromeUA, "DE"), PermissivePolicy())
	assert.False(t, a.Allowed)
	assert.Contains(t, a.Reasons, ReasonOutsideHomeCountry)

	a = scorer.Assess(t.Context(), meta("198.51.100.8", chromeUA, "US"), PermissivePolicy())
	assert.True(t, a.Allowed)
}

func TestAssessReputationBlockOverridesScore(t *testing.T) {
	rep := NewInMemoryReputationStore()
	require.NoError(t, rep.Put(t.Context(), ReputationRecord{
		IPAddress: "203.0.113.66",
		IsAllowed: false,
		RiskLevel: LevelHigh,
	}))
	scorer := newTestScorer(nil, rep)

	a := scorer.Assess(t.Context(), meta("203.0.113.66", chromeUA, "US"), StandardPolicy())
	assert.False(t, a.Allowed)
	assert.Contains(t, a.Reasons, ReasonBadReputation)
}

func TestAssessFirstSeenIPGetsReputationRecord(t *testing.T) {
	rep := NewInMemoryReputationStore()
	scorer := newTestScorer(nil, rep)

	a := scorer.Assess(t.Context(), meta("203.0.113.77", chromeUA, "US"), StandardPolicy())
	require.True(t, a.FirstSeen)

	rec, err := rep.Get(t.Context(), "203.0.113.77")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsAllowed)
	assert.Equal(t, LevelLow, rec.RiskLevel)
	assert.Equal(t, "US", rec.CountryCode)

	// Second sighting is no longer first-seen.
	a = scorer.Assess(t.Context(), meta("203.0.113.77", chromeUA, "US"), StandardPolicy())
	assert.False(t, a.FirstSeen)
}

func TestAssessResightingRefreshesReputationRecord(t *testing.T) {
	rep := NewInMemoryReputationStore()
	firstContact := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	current := firstContact
	scorer := newTestScorer(nil, rep, WithClock(func() time.Time { return current }))

	scorer.Assess(t.Context(), meta("203.0.113.80", chromeUA, "US"), StandardPolicy())

	current = firstContact.Add(24 * time.Hour)
	scorer.Assess(t.Context(), meta("203.0.113.80", torUA, "CA"), StandardPolicy())

	rec, err := rep.Get(t.Context(), "203.0.113.80")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, current, rec.LastSeen, "last_seen must advance on a subsequent sighting")
	assert.Equal(t, "CA", rec.CountryCode)
	assert.True(t, rec.IsAllowed, "allow flag is fixed at first contact")
}

func TestAssessPermissiveIgnoresReputationHardBlock(t *testing.T) {
	rep := NewInMemoryReputationStore()
	require.NoError(t, rep.Put(t.Context(), ReputationRecord{
		IPAddress: "203.0.113.67",
		IsAllowed: false,
		RiskLevel: LevelHigh,
	}))
	scorer := newTestScorer(nil, rep)

	a := scorer.Assess(t.Context(), meta("203.0.113.67", chromeUA, "US"), PermissivePolicy())
	assert.True(t, a.Allowed, "lenient rule decides on Tor signal and country only")
	assert.Contains(t, a.Reasons, ReasonBadReputation)

	a = scorer.Assess(t.Context(), meta("203.0.113.67", chromeUA, "US"), StandardPolicy())
	assert.False(t, a.Allowed)
}

func TestAssessGeolocatorFallbackWhenNoEdgeCountry(t *testing.T) {
	geo := NewStaticGeolocator(map[string]string{"203.0.113.90": "ir"})
	scorer := newTestScorer(geo, NewInMemoryReputationStore())

	a := scorer.Assess(t.Context(), meta("203.0.113.90", chromeUA, ""), StandardPolicy())
	assert.False(t, a.Allowed)
	assert.Equal(t, "IR", a.CountryCode)
}

func TestAssessRecordsSecurityEventWhenBlocked(t *testing.T) {
	store := security.NewInMemoryStore()
	recorder := security.NewRecorder(store, slog.New(slog.DiscardHandler))
	scorer := newTestScorer(nil, NewInMemoryReputationStore(), WithRecorder(recorder))

	scorer.Assess(t.Context(), meta("203.0.113.91", chromeUA, "KP"), StandardPolicy())

	events, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, security.EventGeoBlocked, events[0].Type)
	assert.Equal(t, security.SeverityCritical, events[0].Severity)
}

func TestAssessNoEventBelowThreshold(t *testing.T) {
	store := security.NewInMemoryStore()
	recorder := security.NewRecorder(store, slog.New(slog.DiscardHandler))
	scorer := newTestScorer(nil, NewInMemoryReputationStore(), WithRecorder(recorder))

	scorer.Assess(t.Context(), meta("203.0.113.92", chromeUA, "US"), StandardPolicy())

	events, err := store.ListRecent(t.Context(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

type failingReputation struct{}

func (failingReputation) Get(context.Context, string) (*ReputationRecord, error) {
	return nil, assert.AnError
}
func (failingReputation) Put(context.Context, ReputationRecord) error { return assert.AnError }

func TestAssessReputationFailureIsNonFatal(t *testing.T) {
	scorer := newTestScorer(nil, failingReputation{})

	a := scorer.Assess(t.Context(), meta("203.0.113.93", chromeUA, "US"), StandardPolicy())
	assert.True(t, a.Allowed)
	assert.False(t, a.FirstSeen)
}
