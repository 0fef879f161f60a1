// Package logger builds the zap loggers used across the engine.
package logger

import (
	"io"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a console-encoded logger writing to w, with RFC3339
// timestamps and human-readable durations. Components derive their own
// child logger from this with zap.String("component", ...).
func New(w io.Writer) *zap.Logger {
	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(ts time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(ts.UTC().Format(time.RFC3339))
	}
	config.EncodeDuration = func(d time.Duration, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(d.String())
	}
	return zap.New(zapcore.NewCore(
		zapcore.NewConsoleEncoder(config),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.InfoLevel,
	))
}

// Nop returns a logger that discards everything, for tests and callers
// that have not wired up real logging.
func Nop() *zap.Logger {
	return zap.NewNop()
}
