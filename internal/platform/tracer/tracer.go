// Package tracer provides a minimal tracing facade so the gate can emit
// spans without binding domain code to the OpenTelemetry SDK directly.
package tracer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans around gate executions.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error))
}

// Otel is a Tracer backed by the global OpenTelemetry tracer provider.
type Otel struct {
	tracer trace.Tracer
}

// NewOtel returns a tracer scoped to the given instrumentation name.
func NewOtel(name string) *Otel {
	return &Otel{tracer: otel.Tracer(name)}
}

func (o *Otel) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(err error)) {
	ctx, span := o.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// Noop is a Tracer that does nothing. Used in tests and when tracing is
// not configured.
type Noop struct{}

func (Noop) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, func(err error)) {
	return ctx, func(error) {}
}
