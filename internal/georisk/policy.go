package georisk

// Weights are the additive contributions of each independent risk signal.
type Weights struct {
	SanctionedCountry    int
	CountryNotAllowed    int
	UnknownCountry       int
	PrivateNetworkCredit int
	AnonymizerUA         int
	AutomationUA         int
	MissingUA            int
	BadReputation        int
}

// Policy is an explicit, named risk policy. The two production variants of
// the geo check diverged over time; both are reproduced here as policies
// rather than parallel code paths so the differences stay visible.
type Policy struct {
	Name string

	// SanctionedCountries are unconditionally blocked jurisdictions.
	SanctionedCountries map[string]bool
	// AllowedCountries is consulted only in strict mode.
	AllowedCountries map[string]bool
	// StrictMode penalizes any country absent from AllowedCountries.
	StrictMode bool

	// Permissive switches to the lenient decision rule: allow unless a
	// confirmed Tor signal is present or the resolved country is outside
	// the single home jurisdiction. Scores are still computed for
	// reporting but do not drive the decision.
	Permissive bool
	// HomeCountry is the only country the permissive rule admits when the
	// country is resolved.
	HomeCountry string

	// ReputationHardBlock denies outright when the stored reputation record
	// marks the address as blocked, regardless of the computed score.
	ReputationHardBlock bool

	Weights Weights

	// BlockThreshold: scores at or above it are denied.
	BlockThreshold int
	// EventThreshold: scores at or above it append a security event.
	EventThreshold int
	// ReputationAllowThreshold: first-seen IPs are stored with
	// is_allowed = (score < threshold).
	ReputationAllowThreshold int
}

func defaultWeights() Weights {
	return Weights{
		SanctionedCountry:    100,
		CountryNotAllowed:    70,
		UnknownCountry:       20,
		PrivateNetworkCredit: 20,
		AnonymizerUA:         40,
		AutomationUA:         50,
		MissingUA:            30,
		BadReputation:        80,
	}
}

// StandardPolicy is the full additive-scoring policy used by the enhanced
// geo check.
func StandardPolicy() Policy {
	return Policy{
		Name: "standard",
		SanctionedCountries: map[string]bool{
			"KP": true, "IR": true, "SY": true, "CU": true, "RU": true, "BY": true,
		},
		AllowedCountries: map[string]bool{
			"US": true, "CA": true, "GB": true, "AU": true, "NZ": true,
		},
		ReputationHardBlock:      true,
		Weights:                  defaultWeights(),
		BlockThreshold:           80,
		EventThreshold:           40,
		ReputationAllowThreshold: 50,
	}
}

// PermissivePolicy is the lenient sibling variant: allow unless a confirmed
// Tor signal is present, and block only countries outside the home
// jurisdiction. Kept as a named policy because the two variants shipped
// with different country lists and defaults; do not merge silently.
func PermissivePolicy() Policy {
	p := StandardPolicy()
	p.Name = "permissive"
	p.Permissive = true
	p.HomeCountry = "US"
	// The lenient variant decides on the Tor signal and country alone;
	// reputation still contributes to the reported score.
	p.ReputationHardBlock = false
	return p
}

// WithStrictMode returns a copy of the policy with strict country
// allow-listing enabled.
func (p Policy) WithStrictMode() Policy {
	p.StrictMode = true
	return p
}

// Level buckets a risk score, mirroring the severity scale of the
// security-event store.
type Level string

const (
	LevelLow      Level = "low"
	LevelMedium   Level = "medium"
	LevelHigh     Level = "high"
	LevelCritical Level = "critical"
)

func levelOf(score int) Level {
	switch {
	case score >= 80:
		return LevelCritical
	case score >= 60:
		return LevelHigh
	case score >= 30:
		return LevelMedium
	default:
		return LevelLow
	}
}
