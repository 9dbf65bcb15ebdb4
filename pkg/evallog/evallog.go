// Package evallog adapts structured loggers to optfactory.EvaluatorLogger.
package evallog

import (
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/goliatone/go-optfactory"
)

// Log field names shared by both adapters.
const (
	FieldEngine   = "engine"
	FieldOption   = "option"
	FieldExpr     = "expr"
	FieldDuration = "duration"

	msgEvaluated = "default evaluated"
	msgFailed    = "default evaluation failed"
)

// Zerolog logs successful evaluations at debug level and failures at warn.
func Zerolog(logger zerolog.Logger) optfactory.EvaluatorLogger {
	return optfactory.EvaluatorLoggerFunc(func(event optfactory.EvaluatorLogEvent) {
		entry := logger.Debug()
		msg := msgEvaluated
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
			msg = msgFailed
		}
		entry.
			Str(FieldEngine, event.Engine).
			Str(FieldOption, event.Option).
			Str(FieldExpr, event.Expr).
			Dur(FieldDuration, event.Duration).
			Msg(msg)
	})
}

// Zap is Zerolog for *zap.Logger. A nil logger discards events.
func Zap(logger *zap.Logger) optfactory.EvaluatorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return optfactory.EvaluatorLoggerFunc(func(event optfactory.EvaluatorLogEvent) {
		fields := []zap.Field{
			zap.String(FieldEngine, event.Engine),
			zap.String(FieldOption, event.Option),
			zap.String(FieldExpr, event.Expr),
			zap.Duration(FieldDuration, event.Duration),
		}
		if event.Err != nil {
			logger.Warn(msgFailed, append(fields, zap.Error(event.Err))...)
			return
		}
		logger.Debug(msgEvaluated, fields...)
	})
}
