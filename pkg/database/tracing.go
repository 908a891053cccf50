package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/gomarketplace/pkg/database"

var slowCallCfg struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

// SetSlowCallLogging configures slow call detection. Calls taking at least
// threshold are logged as warnings. A zero threshold disables it.
func SetSlowCallLogging(threshold time.Duration, logger *slog.Logger) {
	slowCallCfg.mu.Lock()
	defer slowCallCfg.mu.Unlock()
	slowCallCfg.threshold = threshold
	slowCallCfg.logger = logger
}

func getSlowCallConfig() (time.Duration, *slog.Logger) {
	slowCallCfg.mu.RLock()
	defer slowCallCfg.mu.RUnlock()
	return slowCallCfg.threshold, slowCallCfg.logger
}

// TraceCall starts a client span for one call to a storage backend. The
// returned function must be called with the call's error when it completes:
//
//	ctx, end := database.TraceCall(ctx, "redis", "GET", key)
//	defer func() { end(err) }()
func TraceCall(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, system+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
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

		threshold, logger := getSlowCallConfig()
		if threshold <= 0 || logger == nil {
			return
		}
		if elapsed := time.Since(start); elapsed >= threshold {
			attrs := []any{
				slog.String("system", system),
				slog.String("operation", operation),
				slog.String("statement", statement),
				slog.Duration("duration", elapsed),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			logger.WarnContext(ctx, "slow storage call detected", attrs...)
		}
	}
}
