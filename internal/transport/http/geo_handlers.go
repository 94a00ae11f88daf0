package http

import (
	"net/http"

	"lendgate/internal/georisk"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/pkg/httputil"
)

type geoResponse struct {
	Allowed       bool     `json:"allowed"`
	RiskScore     int      `json:"risk_score"`
	RiskFactors   []string `json:"risk_factors,omitempty"`
	SecurityLevel string   `json:"security_level"`
	Reason        string   `json:"reason"`
	CountryCode   string   `json:"country_code"`
}

// unknownCountry is the sentinel reported to clients when no country could
// be resolved for the caller.
const unknownCountry = "UNKNOWN"

// geoCheck assesses the caller's request metadata under the given policy.
// The endpoint always answers 200: the assessment is the payload, not a
// gate on this route itself.
func (h *handlers) geoCheck(policy georisk.Policy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta := metadata.FromContext(r.Context())
		assessment := h.cfg.Scorer.Assess(r.Context(), meta, policy)

		reason := "request allowed"
		if !assessment.Allowed {
			reason = "request blocked by security policy"
		}
		country := assessment.CountryCode
		if country == "" {
			country = unknownCountry
		}

		httputil.WriteJSON(w, http.StatusOK, geoResponse{
			Allowed:       assessment.Allowed,
			RiskScore:     assessment.Score,
			RiskFactors:   assessment.Reasons,
			SecurityLevel: string(assessment.Level),
			Reason:        reason,
			CountryCode:   country,
		})
	}
}
