// Package evaltrace records default evaluations as OpenTelemetry spans.
package evaltrace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/goliatone/go-optfactory"
)

// ScopeName identifies the spans this package creates.
const ScopeName = "github.com/goliatone/go-optfactory"

// SpanName is the name of every evaluation span.
const SpanName = "optfactory.evaluate"

// Option configures a Logger.
type Option func(*Logger)

// WithContext parents evaluation spans under the span carried by ctx.
func WithContext(ctx context.Context) Option {
	return func(l *Logger) {
		if ctx != nil {
			l.ctx = ctx
		}
	}
}

// Logger implements optfactory.EvaluatorLogger. Evaluations are reported
// after they finish, so each span is back-dated by the event duration.
type Logger struct {
	tracer trace.Tracer
	ctx    context.Context
}

// New creates a Logger using provider, or the global provider when nil.
func New(provider trace.TracerProvider, opts ...Option) *Logger {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	l := &Logger{
		tracer: provider.Tracer(ScopeName),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// LogEvaluation implements optfactory.EvaluatorLogger.
func (l *Logger) LogEvaluation(event optfactory.EvaluatorLogEvent) {
	end := time.Now()
	_, span := l.tracer.Start(l.ctx, SpanName,
		trace.WithTimestamp(end.Add(-event.Duration)),
		trace.WithAttributes(
			attribute.String("optfactory.option", event.Option),
			attribute.String("optfactory.engine", event.Engine),
			attribute.String("optfactory.expr", event.Expr),
		),
	)
	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(end))
}
