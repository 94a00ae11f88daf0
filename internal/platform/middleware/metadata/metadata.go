// Package metadata extracts client network metadata (IP, User-Agent, edge
// country) from the incoming request and stores it on the context so the
// gate and the risk scorer never touch raw headers themselves.
package metadata

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// MaxForwardedHeaderLength caps X-Forwarded-For / X-Real-IP to prevent
// header-stuffing from flowing into stores and logs.
const MaxForwardedHeaderLength = 500

// CountryHeader is set by the CDN edge with the ISO 3166-1 alpha-2 country
// of the connecting client.
const CountryHeader = "CF-IPCountry"

// Meta is the per-request client metadata consumed by the risk scorer.
type Meta struct {
	ClientIP    string
	UserAgent   string
	EdgeCountry string
}

type metaKey struct{}

// FromContext returns the client metadata stored by the middleware.
func FromContext(ctx context.Context) Meta {
	if m, ok := ctx.Value(metaKey{}).(Meta); ok {
		return m
	}
	return Meta{ClientIP: "unknown"}
}

// WithMeta stores client metadata on the context. Exported for tests and
// for the gate's direct invocations.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

// Config controls which upstream hops are trusted to set forwarding headers.
type Config struct {
	// TrustedProxies lists CIDR prefixes allowed to set X-Forwarded-For.
	TrustedProxies []netip.Prefix
	// TrustAllProxies trusts forwarding headers from any hop. Only safe when
	// the service is reachable exclusively through the CDN edge.
	TrustAllProxies bool
}

// Middleware resolves client metadata with trusted-proxy validation.
type Middleware struct {
	config Config
}

func New(cfg Config) *Middleware {
	return &Middleware{config: cfg}
}

// Handler stores resolved client metadata on the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := Meta{
			ClientIP:    m.extractClientIP(r),
			UserAgent:   r.Header.Get("User-Agent"),
			EdgeCountry: strings.ToUpper(strings.TrimSpace(r.Header.Get(CountryHeader))),
		}
		next.ServeHTTP(w, r.WithContext(WithMeta(r.Context(), meta)))
	})
}

// extractClientIP resolves the original client IP, taking the first hop of
// X-Forwarded-For when the direct peer is a trusted proxy.
func (m *Middleware) extractClientIP(r *http.Request) string {
	remoteIP := parseRemoteAddr(r.RemoteAddr)
	if remoteIP == "" {
		return "unknown"
	}

	if !m.trusted(remoteIP) {
		return remoteIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" && len(xff) <= MaxForwardedHeaderLength {
		first := xff
		if before, _, ok := strings.Cut(xff, ","); ok {
			first = before
		}
		first = strings.TrimSpace(first)
		if _, err := netip.ParseAddr(first); err == nil {
			return first
		}
		return remoteIP
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && len(xri) <= MaxForwardedHeaderLength {
		if _, err := netip.ParseAddr(xri); err == nil {
			return xri
		}
	}

	return remoteIP
}

func (m *Middleware) trusted(ip string) bool {
	if m.config.TrustAllProxies {
		return true
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range m.config.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func parseRemoteAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		// RemoteAddr without a port (e.g. in tests)
		if _, perr := netip.ParseAddr(remoteAddr); perr == nil {
			return remoteAddr
		}
		return ""
	}
	return host
}
