package config

import (
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	StepUpSecret    string
	StepUpTTL       time.Duration
	AllowedOrigin   string
	DatabaseURL     string
	RedisURL        string
	TrustAllProxies bool
	TrustedProxies  []netip.Prefix

	// FailClosedActions lists gate actions whose rate-limit check rejects
	// the request when the counter store itself errors. All other actions
	// fail open (availability over strictness).
	FailClosedActions map[string]bool

	// GeoPermissiveMode switches the risk scorer to the permissive policy
	// (block only Tor signals and non-US countries).
	GeoPermissiveMode bool
	GeoStrictMode     bool

	// AdminBootstrapEmail/Password seed the first admin account at startup
	// when the user store is empty. Both must be set together.
	AdminBootstrapEmail    string
	AdminBootstrapPassword string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("LENDGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	stepUpSecret := os.Getenv("STEPUP_SECRET")
	if stepUpSecret == "" {
		stepUpSecret = jwtSigningKey
	}

	stepUpTTL := 5 * time.Minute
	if v := os.Getenv("STEPUP_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			stepUpTTL = d
		}
	}

	failClosed := map[string]bool{}
	for a := range strings.SplitSeq(os.Getenv("RATE_LIMIT_FAIL_CLOSED"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			failClosed[a] = true
		}
	}

	var trusted []netip.Prefix
	for p := range strings.SplitSeq(os.Getenv("TRUSTED_PROXIES"), ",") {
		if p = strings.TrimSpace(p); p != "" {
			if prefix, err := netip.ParsePrefix(p); err == nil {
				trusted = append(trusted, prefix)
			}
		}
	}

	return Server{
		Addr:              addr,
		JWTSigningKey:     jwtSigningKey,
		StepUpSecret:      stepUpSecret,
		StepUpTTL:         stepUpTTL,
		AllowedOrigin:     os.Getenv("CORS_ALLOWED_ORIGIN"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		TrustAllProxies:   boolEnv("TRUST_ALL_PROXIES", true),
		TrustedProxies:    trusted,
		FailClosedActions: failClosed,
		GeoPermissiveMode: boolEnv("GEO_PERMISSIVE_MODE", false),
		GeoStrictMode:     boolEnv("GEO_STRICT_MODE", false),

		AdminBootstrapEmail:    os.Getenv("ADMIN_BOOTSTRAP_EMAIL"),
		AdminBootstrapPassword: os.Getenv("ADMIN_BOOTSTRAP_PASSWORD"),
	}
}

func boolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
