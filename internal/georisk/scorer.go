// Package georisk scores incoming requests from network and client
// signals: resolved country, IP classification, User-Agent heuristics and
// per-IP reputation. Scoring is additive so each signal stays independently
// tunable; the decision falls out of the policy thresholds.
package georisk

import (
	"context"
	"log/slog"
	"net/netip"
	"time"

	"golang.org/x/sync/singleflight"

	"lendgate/internal/georisk/metrics"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/security"
)

// Reasons attached to assessments, stable identifiers for clients and
// security-event details.
const (
	ReasonInvalidIP          = "invalid_ip_format"
	ReasonSanctionedCountry  = "sanctioned_country"
	ReasonCountryNotAllowed  = "country_not_allowed"
	ReasonUnknownCountry     = "unknown_country"
	ReasonPrivateNetwork     = "private_network"
	ReasonAnonymizerUA       = "anonymizer_user_agent"
	ReasonAutomationUA       = "automation_user_agent"
	ReasonMissingUA          = "missing_user_agent"
	ReasonBadReputation      = "bad_ip_reputation"
	ReasonOutsideHomeCountry = "outside_home_country"
)

// torExitCountry is the reserved code the CDN edge assigns to Tor exit
// nodes in place of a real country.
const torExitCountry = "T1"

// Assessment is the outcome of one risk evaluation.
type Assessment struct {
	Allowed     bool     `json:"allowed"`
	Score       int      `json:"risk_score"`
	Level       Level    `json:"risk_level"`
	CountryCode string   `json:"country_code,omitempty"`
	IPAddress   string   `json:"ip_address"`
	Reasons     []string `json:"reasons,omitempty"`
	Policy      string   `json:"policy"`
	FirstSeen   bool     `json:"-"`
}

// Scorer evaluates request risk under a policy. Safe for concurrent use.
type Scorer struct {
	geo        Geolocator
	reputation ReputationStore
	recorder   *security.Recorder
	logger     *slog.Logger
	metrics    *metrics.Metrics
	group      singleflight.Group
	now        func() time.Time
}

type Option func(*Scorer)

func WithLogger(log *slog.Logger) Option {
	return func(s *Scorer) { s.logger = log }
}

func WithRecorder(rec *security.Recorder) Option {
	return func(s *Scorer) { s.recorder = rec }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scorer) { s.metrics = m }
}

// WithClock overrides the time source. Test hook.
func WithClock(now func() time.Time) Option {
	return func(s *Scorer) { s.now = now }
}

func NewScorer(geo Geolocator, reputation ReputationStore, opts ...Option) *Scorer {
	s := &Scorer{
		geo:        geo,
		reputation: reputation,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assess runs the scoring pipeline for one request under the given policy.
// It never returns an error: signal sources that fail are skipped and the
// remaining signals decide, the same fail-open posture the rate limiter
// takes toward its store.
func (s *Scorer) Assess(ctx context.Context, meta metadata.Meta, policy Policy) Assessment {
	a := Assessment{
		IPAddress: meta.ClientIP,
		Policy:    policy.Name,
	}

	addr, err := netip.ParseAddr(meta.ClientIP)
	if err != nil {
		// An address that survived the metadata middleware but does not
		// parse is header tampering, not a routing artifact.
		a.Allowed = false
		a.Score = 100
		a.Level = LevelCritical
		a.Reasons = []string{ReasonInvalidIP}
		s.report(ctx, meta, a, policy)
		return a
	}

	private := isPrivateOrLocal(addr)

	score := 0
	if private {
		// Internal callers carry a credit instead of a geo lookup; they
		// have no meaningful country and no reputation history.
		score -= policy.Weights.PrivateNetworkCredit
		a.Reasons = append(a.Reasons, ReasonPrivateNetwork)
	} else {
		country := s.resolveCountry(ctx, meta)
		a.CountryCode = country
		switch {
		case country == "":
			score += policy.Weights.UnknownCountry
			a.Reasons = append(a.Reasons, ReasonUnknownCountry)
		case policy.SanctionedCountries[country]:
			score += policy.Weights.SanctionedCountry
			a.Reasons = append(a.Reasons, ReasonSanctionedCountry)
		case policy.StrictMode && !policy.AllowedCountries[country]:
			score += policy.Weights.CountryNotAllowed
			a.Reasons = append(a.Reasons, ReasonCountryNotAllowed)
		}
	}

	ua := AnalyzeUserAgent(meta.UserAgent)
	if meta.EdgeCountry == torExitCountry {
		// The CDN edge labels Tor exit nodes with a reserved country code.
		ua.Anonymizer = true
	}
	if ua.Missing {
		score += policy.Weights.MissingUA
		a.Reasons = append(a.Reasons, ReasonMissingUA)
	}
	if ua.Anonymizer {
		score += policy.Weights.AnonymizerUA
		a.Reasons = append(a.Reasons, ReasonAnonymizerUA)
	}
	if ua.Automation {
		score += policy.Weights.AutomationUA
		a.Reasons = append(a.Reasons, ReasonAutomationUA)
	}

	if score < 0 {
		score = 0
	}

	reputationBlocked := false
	var known *ReputationRecord
	if !private {
		known, a.FirstSeen = s.lookupReputation(ctx, meta.ClientIP)
		if known != nil && !known.IsAllowed {
			score += policy.Weights.BadReputation
			a.Reasons = append(a.Reasons, ReasonBadReputation)
			reputationBlocked = true
		}
	}

	a.Score = score
	a.Level = levelOf(score)
	a.Allowed = s.decide(&a, policy, ua, reputationBlocked)

	if !private {
		s.storeReputation(ctx, meta.ClientIP, a, policy, known)
	}

	s.report(ctx, meta, a, policy)
	return a
}

// decide applies the policy's decision rule to the computed signals.
func (s *Scorer) decide(a *Assessment, policy Policy, ua UASignals, reputationBlocked bool) bool {
	if reputationBlocked && policy.ReputationHardBlock {
		return false
	}
	if policy.Permissive {
		// Lenient rule: block only confirmed anonymizer traffic and
		// resolved countries outside the home jurisdiction.
		if ua.Anonymizer {
			return false
		}
		if a.CountryCode != "" && a.CountryCode != policy.HomeCountry {
			a.Reasons = append(a.Reasons, ReasonOutsideHomeCountry)
			return false
		}
		return true
	}
	return a.Score < policy.BlockThreshold
}

func (s *Scorer) resolveCountry(ctx context.Context, meta metadata.Meta) string {
	if meta.EdgeCountry != "" && meta.EdgeCountry != "XX" && meta.EdgeCountry != torExitCountry {
		return meta.EdgeCountry
	}
	if s.geo == nil {
		return ""
	}
	country, err := s.geo.Country(ctx, meta.ClientIP)
	if err != nil {
		s.logger.WarnContext(ctx, "geolocation lookup failed", "error", err)
		return ""
	}
	return country
}

// lookupReputation reads the per-IP record, deduplicating concurrent
// lookups for the same address. firstSeen reports an unseen public IP.
func (s *Scorer) lookupReputation(ctx context.Context, ip string) (rec *ReputationRecord, firstSeen bool) {
	if s.reputation == nil {
		return nil, false
	}
	v, err, _ := s.group.Do(ip, func() (any, error) {
		return s.reputation.Get(ctx, ip)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "reputation lookup failed", "error", err)
		return nil, false
	}
	rec, _ = v.(*ReputationRecord)
	return rec, rec == nil
}

// storeReputation persists the sighting of a public IP. First contact
// writes a fresh record whose allow flag follows the score at that moment,
// not the final decision, so a one-off UA anomaly does not poison the
// address forever. Subsequent sightings refresh last_seen and the resolved
// country and leave the allow flag alone for the same reason.
func (s *Scorer) storeReputation(ctx context.Context, ip string, a Assessment, policy Policy, known *ReputationRecord) {
	if s.reputation == nil {
		return
	}
	var rec ReputationRecord
	switch {
	case known != nil:
		rec = *known
		rec.LastSeen = s.now().UTC()
		if a.CountryCode != "" {
			rec.CountryCode = a.CountryCode
		}
	case a.FirstSeen:
		rec = ReputationRecord{
			IPAddress:   ip,
			IsAllowed:   a.Score < policy.ReputationAllowThreshold,
			RiskLevel:   a.Level,
			CountryCode: a.CountryCode,
			LastSeen:    s.now().UTC(),
		}
	default:
		// The lookup itself failed; there is no record to anchor an update to.
		return
	}
	if err := s.reputation.Put(ctx, rec); err != nil {
		s.logger.WarnContext(ctx, "reputation write failed", "error", err)
	}
}

func (s *Scorer) report(ctx context.Context, meta metadata.Meta, a Assessment, policy Policy) {
	if s.metrics != nil {
		s.metrics.RecordAssessment(policy.Name, a.Allowed, a.Score)
	}

	if s.recorder != nil && (!a.Allowed || a.Score >= policy.EventThreshold) {
		eventType := security.EventHighRiskRequest
		if !a.Allowed {
			eventType = security.EventGeoBlocked
		}
		event := security.NewEvent(eventType, severityOf(a.Level))
		event.IPAddress = meta.ClientIP
		event.UserAgent = meta.UserAgent
		event.Details = map[string]any{
			"risk_score": a.Score,
			"risk_level": string(a.Level),
			"country":    a.CountryCode,
			"reasons":    a.Reasons,
			"policy":     policy.Name,
		}
		s.recorder.Record(ctx, event)
	}

	s.logger.DebugContext(ctx, "risk assessment",
		"allowed", a.Allowed,
		"score", a.Score,
		"level", a.Level,
		"country", a.CountryCode,
		"policy", policy.Name,
	)
}

func severityOf(level Level) security.Severity {
	switch level {
	case LevelCritical:
		return security.SeverityCritical
	case LevelHigh:
		return security.SeverityHigh
	case LevelMedium:
		return security.SeverityMedium
	default:
		return security.SeverityLow
	}
}

func isPrivateOrLocal(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified()
}
