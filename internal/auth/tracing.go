// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("tripdesk/auth")

// begin opens a span for flow. The returned func records the attempt
// outcome and ends the span.
func (s *Service) begin(ctx context.Context, flow string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "auth."+flow,
		trace.WithAttributes(attribute.String("auth.flow", flow)))
	return ctx, func(err error) {
		outcome := outcomeOf(err)
		s.recorder.RecordAttempt(flow, outcome)
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if err != nil {
			span.SetAttributes(attribute.String("auth.error_code", Code(err)))
			span.SetStatus(codes.Error, Code(err))
		}
		span.End()
	}
}
