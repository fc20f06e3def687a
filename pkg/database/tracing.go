package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/zaver-checkout/pkg/database"

type slowQueryConfig struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQuery atomic.Pointer[slowQueryConfig]

// SetSlowQueryLogging logs queries slower than threshold as warnings.
// A zero threshold or nil logger disables it.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQuery.Store(nil)
		return
	}
	slowQuery.Store(&slowQueryConfig{threshold: threshold, logger: logger})
}

// TraceQuery starts a client span for a database operation. The returned
// function ends the span and must be called exactly once:
//
//	ctx, end := database.TraceQuery(ctx, "GetOrder", query)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
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

		cfg := slowQuery.Load()
		if cfg == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= cfg.threshold {
			attrs := []any{
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			cfg.logger.WarnContext(ctx, "slow query detected", attrs...)
		}
	}
}
