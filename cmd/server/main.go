package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"lendgate/internal/admin"
	"lendgate/internal/audit"
	"lendgate/internal/docscan"
	"lendgate/internal/gate"
	"lendgate/internal/georisk"
	georiskmetrics "lendgate/internal/georisk/metrics"
	"lendgate/internal/ledger"
	"lendgate/internal/platform/config"
	"lendgate/internal/platform/database"
	"lendgate/internal/platform/httpserver"
	"lendgate/internal/platform/logger"
	"lendgate/internal/platform/middleware/metadata"
	platformredis "lendgate/internal/platform/redis"
	"lendgate/internal/platform/tracer"
	"lendgate/internal/ratelimit"
	ratelimitmetrics "lendgate/internal/ratelimit/metrics"
	"lendgate/internal/security"
	"lendgate/internal/stepup"
	"lendgate/internal/token"
	httptransport "lendgate/internal/transport/http"
	dErrors "lendgate/pkg/domain-errors"
)

const tokenTTL = 12 * time.Hour

// main wires dependencies, exposes the HTTP router and keeps the server
// lifecycle small. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing lendgate", "addr", cfg.Addr)

	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close() //nolint:errcheck // process is exiting

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}

	// Stores fall back to in-memory implementations when no backing
	// service is configured, which keeps local development dependency-free.
	var (
		securityStore   security.Store
		auditStore      audit.Store
		userStore       admin.Store
		reputationStore georisk.ReputationStore
		ledgerStore     ledger.Store
		counterStore    ratelimit.CounterStore
	)
	if pool != nil {
		db := pool.DB()
		securityStore = security.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		userStore = admin.NewPostgres(db)
		reputationStore = georisk.NewPostgresReputationStore(db)
		ledgerStore = ledger.NewPostgres(db)
		counterStore = ratelimit.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		securityStore = security.NewInMemoryStore()
		auditStore = audit.NewInMemoryStore()
		userStore = admin.NewInMemoryStore()
		reputationStore = georisk.NewInMemoryReputationStore()
		ledgerStore = ledger.NewInMemoryStore()
		counterStore = ratelimit.NewInMemoryCounterStore()
	}
	if cache != nil {
		// Redis wins for counters: the INCR path is cheaper than the
		// advisory-lock transaction.
		counterStore = ratelimit.NewRedis(cache.Client)
	}

	recorder := security.NewRecorder(securityStore, log)
	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithLogger(log),
	)
	defer auditor.Close()

	policies := ratelimit.DefaultPolicies()
	for action := range cfg.FailClosedActions {
		if p, ok := policies[action]; ok {
			p.FailClosed = true
			policies[action] = p
		}
	}
	limiter := ratelimit.New(counterStore,
		ratelimit.WithLogger(log),
		ratelimit.WithPolicies(policies),
		ratelimit.WithMetrics(ratelimitmetrics.New()),
	)

	tokens := token.NewService(cfg.JWTSigningKey, tokenTTL)
	verifier := stepup.NewHMACVerifier([]byte(cfg.StepUpSecret),
		stepup.WithTTL(cfg.StepUpTTL),
		stepup.WithLogger(log),
		stepup.WithRecorder(recorder),
	)

	requestGate := gate.New(limiter, verifier, auditor,
		gate.WithLogger(log),
		gate.WithRecorder(recorder),
		gate.WithTracer(tracer.NewOtel("lendgate")),
	)

	scorer := georisk.NewScorer(georisk.EdgeGeolocator{}, reputationStore,
		georisk.WithLogger(log),
		georisk.WithRecorder(recorder),
		georisk.WithMetrics(georiskmetrics.New()),
	)
	enhancedPolicy := georisk.StandardPolicy()
	if cfg.GeoStrictMode {
		enhancedPolicy = enhancedPolicy.WithStrictMode()
	}
	if cfg.GeoPermissiveMode {
		enhancedPolicy = georisk.PermissivePolicy()
	}

	users := admin.NewService(userStore, admin.WithLogger(log))
	if cfg.AdminBootstrapEmail != "" && cfg.AdminBootstrapPassword != "" {
		bootstrapAdmin(log, users, cfg.AdminBootstrapEmail, cfg.AdminBootstrapPassword)
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:            log,
		TokenValidator:    tokens,
		Metadata:          metadata.New(metadata.Config{TrustAllProxies: cfg.TrustAllProxies, TrustedProxies: cfg.TrustedProxies}),
		AllowedOrigin:     cfg.AllowedOrigin,
		Gate:              requestGate,
		Users:             users,
		Audits:            auditor,
		Events:            securityStore,
		Ledger:            ledger.NewService(ledgerStore, ledger.WithLogger(log)),
		Scanner:           docscan.New(docscan.WithLogger(log), docscan.WithRecorder(recorder)),
		Limiter:           limiter,
		Scorer:            scorer,
		GeoPolicy:         georisk.PermissivePolicy(),
		GeoEnhancedPolicy: enhancedPolicy,
		Health: func(ctx context.Context) map[string]string {
			checks := map[string]string{}
			if pool != nil {
				checks["database"] = healthStatus(pool.Health(ctx))
			}
			if cache != nil {
				checks["redis"] = healthStatus(cache.Health(ctx))
			}
			return checks
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info("shutting down server gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// bootstrapAdmin seeds the initial administrator account. An existing
// account with the same email is left untouched.
func bootstrapAdmin(log *slog.Logger, users *admin.Service, email, password string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := users.Create(ctx, admin.CreateInput{
		Email:     email,
		Password:  password,
		FirstName: "System",
		LastName:  "Administrator",
		Role:      admin.RoleAdmin,
	})
	switch {
	case err == nil:
		log.Info("bootstrap admin created", "user_id", user.ID, "email", email)
	case dErrors.HasCode(err, dErrors.CodeConflict):
		log.Info("bootstrap admin already exists", "email", email)
	default:
		log.Error("bootstrap admin creation failed", "error", err)
		os.Exit(1)
	}
}

func healthStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
