// Package gate is the composite orchestration every privileged endpoint
// runs through: authenticate, rate-limit, step-up for destructive
// operations, validate input, execute, audit. The steps are strictly
// ordered hard gates; a failure at any step short-circuits with no side
// effect beyond logging and security events.
package gate

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"lendgate/internal/audit"
	"lendgate/internal/platform/middleware"
	"lendgate/internal/platform/middleware/auth"
	"lendgate/internal/platform/middleware/metadata"
	"lendgate/internal/platform/tracer"
	"lendgate/internal/ratelimit"
	"lendgate/internal/security"
	"lendgate/internal/stepup"
	dErrors "lendgate/pkg/domain-errors"
)

// Spec describes the gating requirements of one endpoint. Static per
// route; the per-request parts live in Request.
type Spec struct {
	// Action keys the rate-limit policy and names the operation in logs.
	Action string
	// AuditAction and TableName label the audit row on success.
	AuditAction string
	TableName   string
	// RequireAdmin restricts the endpoint to the admin role.
	RequireAdmin bool
	// StepUp, when set, demands a second-factor token bound to this
	// operation type.
	StepUp *stepup.Operation
	// RejectSelfTarget refuses requests whose target is the caller itself.
	RejectSelfTarget bool
}

// Request carries the per-request inputs the gate consumes.
type Request struct {
	// StepUpToken is the caller-supplied second-factor token.
	StepUpToken string
	// TargetID identifies the record the operation acts on.
	TargetID string
	// Validate aggregates all field violations; nil skips the step.
	Validate func() error
	// Details is the sanitized payload recorded as the audit row's new
	// values.
	Details map[string]any
}

// Gate wires the collaborators of the orchestration.
type Gate struct {
	limiter  *ratelimit.Limiter
	verifier stepup.Verifier
	recorder *security.Recorder
	auditor  *audit.Publisher
	tracer   tracer.Tracer
	logger   *slog.Logger
}

type Option func(*Gate)

func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) { g.logger = log }
}

func WithTracer(t tracer.Tracer) Option {
	return func(g *Gate) { g.tracer = t }
}

func WithRecorder(rec *security.Recorder) Option {
	return func(g *Gate) { g.recorder = rec }
}

func New(limiter *ratelimit.Limiter, verifier stepup.Verifier, auditor *audit.Publisher, opts ...Option) *Gate {
	g := &Gate{
		limiter:  limiter,
		verifier: verifier,
		auditor:  auditor,
		tracer:   tracer.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run executes the gate pipeline around op. op is the only step allowed to
// mutate external state; nothing before it has side effects other than
// counter increments, logs and security events. The returned value is op's
// result on success.
func (g *Gate) Run(ctx context.Context, spec Spec, req Request, op func(ctx context.Context) (any, error)) (any, error) {
	ctx, end := g.tracer.Start(ctx, "gate.run",
		attribute.String("gate.action", spec.Action),
	)
	var runErr error
	defer func() { end(runErr) }()

	claims := auth.Identity(ctx)
	if claims == nil {
		// Nothing sensitive happened yet; no audit row.
		runErr = dErrors.New(dErrors.CodeUnauthorized, "missing caller identity")
		return nil, runErr
	}

	if spec.RequireAdmin && claims.Role != auth.RoleAdmin {
		g.recordEvent(ctx, security.EventAuthorizationFailure, security.SeverityMedium, claims.UserID, map[string]any{
			"action": spec.Action,
			"role":   claims.Role,
		})
		runErr = dErrors.New(dErrors.CodeForbidden, "admin role required")
		return nil, runErr
	}

	if err := g.checkRateLimit(ctx, spec, claims.UserID); err != nil {
		runErr = err
		return nil, runErr
	}

	// Self-targeting destructive requests are refused before step-up is
	// even consulted: a valid second factor does not make them legal.
	if spec.RejectSelfTarget && req.TargetID != "" && req.TargetID == claims.UserID {
		g.recordEvent(ctx, security.EventSelfTargetRejected, security.SeverityHigh, claims.UserID, map[string]any{
			"action": spec.Action,
			"target": req.TargetID,
		})
		runErr = dErrors.New(dErrors.CodeForbidden, "operation may not target the caller")
		return nil, runErr
	}

	if spec.StepUp != nil {
		if err := g.verifier.Verify(ctx, req.StepUpToken, claims.UserID, *spec.StepUp); err != nil {
			runErr = err
			return nil, runErr
		}
	}

	if req.Validate != nil {
		if err := req.Validate(); err != nil {
			runErr = err
			return nil, runErr
		}
	}

	result, err := op(ctx)
	if err != nil {
		g.auditFailure(ctx, spec, req, claims.UserID, err)
		runErr = err
		return nil, runErr
	}

	g.auditSuccess(ctx, spec, req, claims.UserID)
	return result, nil
}

func (g *Gate) checkRateLimit(ctx context.Context, spec Spec, callerID string) error {
	if g.limiter == nil {
		return nil
	}
	decision := g.limiter.Check(ctx, callerID, g.limiter.PolicyFor(spec.Action))
	if decision.Allowed {
		return nil
	}

	meta := metadata.FromContext(ctx)
	g.recordEvent(ctx, security.EventRateLimitExceeded, security.SeverityMedium, callerID, map[string]any{
		"action":     spec.Action,
		"ip_address": meta.ClientIP,
	})
	retryAfter := decision.RetryAfter
	if retryAfter < 1 {
		retryAfter = 1
	}
	return dErrors.NewRateLimited(retryAfter)
}

func (g *Gate) auditSuccess(ctx context.Context, spec Spec, req Request, actorID string) {
	if g.auditor == nil || spec.AuditAction == "" {
		return
	}
	event := audit.NewEvent(actorID, spec.AuditAction, spec.TableName)
	event.RecordID = req.TargetID
	event.NewValues = req.Details
	event.RequestID = middleware.GetRequestID(ctx)
	if err := g.auditor.Emit(ctx, event); err != nil {
		// The operation already succeeded; an under-logged state change
		// beats a rolled-back one.
		g.logger.ErrorContext(ctx, "audit write failed after operation",
			"error", err,
			"action", spec.AuditAction,
		)
	}
}

func (g *Gate) auditFailure(ctx context.Context, spec Spec, req Request, actorID string, cause error) {
	if g.auditor == nil || spec.AuditAction == "" {
		return
	}
	event := audit.NewEvent(actorID, audit.ActionOperationFailed, spec.TableName)
	event.RecordID = req.TargetID
	event.NewValues = map[string]any{
		"attempted_action": spec.AuditAction,
		"error_code":       string(dErrors.CodeOf(cause)),
	}
	event.RequestID = middleware.GetRequestID(ctx)
	if err := g.auditor.Emit(ctx, event); err != nil {
		g.logger.ErrorContext(ctx, "audit write failed", "error", err)
	}
}

func (g *Gate) recordEvent(ctx context.Context, eventType string, severity security.Severity, userID string, details map[string]any) {
	if g.recorder == nil {
		return
	}
	meta := metadata.FromContext(ctx)
	event := security.NewEvent(eventType, severity)
	event.UserID = userID
	event.IPAddress = meta.ClientIP
	event.UserAgent = meta.UserAgent
	event.Details = details
	g.recorder.Record(ctx, event)
}
