package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/tgshop/pkg/database"

// QueryTracer wraps queries in client spans and logs the slow ones. A nil
// *QueryTracer still traces but never logs.
type QueryTracer struct {
	slowThreshold time.Duration
	logger        *slog.Logger
}

// NewQueryTracer creates a tracer that warns about queries slower than
// slowThreshold. Zero disables slow query logging.
func NewQueryTracer(slowThreshold time.Duration, logger *slog.Logger) *QueryTracer {
	return &QueryTracer{slowThreshold: slowThreshold, logger: logger}
}

// Trace starts a span for a database operation. Call the returned function
// with the operation's error when it completes:
//
//	ctx, end := tracer.Trace(ctx, "LoadShippingOptions", query)
//	defer func() { end(err) }()
func (t *QueryTracer) Trace(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		if t == nil || t.slowThreshold <= 0 || t.logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= t.slowThreshold {
			t.logger.WarnContext(ctx, "slow query",
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			)
		}
	}
}
