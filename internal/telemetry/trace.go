package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span named spanName on the tracer tracerName.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerIAM, "iam.ResolveRoles",
//	    attribute.String(AttrPrincipalSubject, subject),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and marks the span as failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Tracer names
const (
	TracerIAM     = "gateway/services/iam"
	TracerGateway = "gateway/dispatcher"
)

// Common attribute keys
const (
	AttrPrincipalSubject = "principal.subject"
	AttrPrincipalEmail   = "principal.email"
	AttrAuthorities      = "principal.authorities"

	AttrOracleProject  = "oracle.project"
	AttrOracleBindings = "oracle.bindings"
	AttrFallbackReason = "resolver.fallback_reason"

	AttrRouteID     = "route.id"
	AttrRoutePool   = "route.pool"
	AttrRewritePath = "route.rewritten_path"
	AttrAuthzRule   = "authz.rule"
	AttrAuthzResult = "authz.outcome"
)
