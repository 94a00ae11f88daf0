// Package http exposes the service's HTTP surface: the admin user
// endpoints, audit and ledger writes, document scanning, the geo risk
// checks and operational probes. Every privileged route runs through the
// request gate; transport code only decodes, delegates and encodes.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lendgate/internal/admin"
	"lendgate/internal/audit"
	"lendgate/internal/docscan"
	"lendgate/internal/gate"
	"lendgate/internal/georisk"
	"lendgate/internal/ledger"
	"lendgate/internal/platform/middleware"
	"lendgate/internal/platform/middleware/auth"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/ratelimit"
	"lendgate/internal/security"
)

const requestTimeout = 30 * time.Second

// Config wires the collaborators of the HTTP surface.
type Config struct {
	Logger         *slog.Logger
	TokenValidator auth.TokenValidator
	Metadata       *metadata.Middleware
	AllowedOrigin  string

	Gate    *gate.Gate
	Users   *admin.Service
	Audits  *audit.Publisher
	Events  security.Store
	Ledger  *ledger.Service
	Scanner *docscan.Scanner
	Limiter *ratelimit.Limiter

	Scorer            *georisk.Scorer
	GeoPolicy         georisk.Policy
	GeoEnhancedPolicy georisk.Policy

	// Health reports per-dependency status for the readiness probe.
	Health func(ctx context.Context) map[string]string
}

type handlers struct {
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
}

// NewRouter builds the chi router with the shared middleware stack.
func NewRouter(cfg Config) *chi.Mux {
	h := &handlers{
		cfg:      cfg,
		logger:   cfg.Logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cfg.Metadata.Handler)
	r.Use(middleware.CORS(cfg.AllowedOrigin))

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// The geo checks are unauthenticated by design: they run before login
	// flows and score purely from request metadata.
	r.Route("/geo-security", func(r chi.Router) {
		r.Get("/", h.geoCheck(cfg.GeoPolicy))
		r.Post("/", h.geoCheck(cfg.GeoPolicy))
		r.Get("/enhanced", h.geoCheck(cfg.GeoEnhancedPolicy))
		r.Post("/enhanced", h.geoCheck(cfg.GeoEnhancedPolicy))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(auth.RequireAuth(cfg.TokenValidator, cfg.Logger))

		r.Route("/admin/users", func(r chi.Router) {
			r.Post("/", h.createUser)
			r.Get("/", h.listUsers)
			r.Patch("/{id}", h.updateUser)
			r.Delete("/{id}", h.deleteUser)
			r.Post("/{id}/reset-password", h.resetPassword)
		})
		r.Get("/admin/security-events", h.listSecurityEvents)

		r.Post("/audit-log", h.writeAuditLog)
		r.Post("/documents/scan", h.scanDocument)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		r.Use(auth.OptionalAuth(cfg.TokenValidator, cfg.Logger))
		r.Post("/ledger/hash", h.ledgerHash)
		r.Get("/ledger/{id}/verify", h.ledgerVerify)
	})

	return r
}
