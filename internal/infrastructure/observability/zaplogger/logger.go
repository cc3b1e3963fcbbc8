// Package zaplogger backs the Logger port with zap.
package zaplogger

import (
	"github.com/Zhima-Mochi/storefront-bot/internal/observability"
	"go.uber.org/zap"
)

type logger struct{ l *zap.Logger }

// Wrap adapts the base logger from pkg/logging. fixed fields (service,
// component) are attached once. main keeps the *zap.Logger to Sync it on
// exit.
func Wrap(l *zap.Logger, fixed ...observability.Field) observability.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fixed) > 0 {
		l = l.With(zapFields(fixed)...)
	}
	return &logger{l: l}
}

func (z *logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return &logger{l: z.l.With(zapFields(fields)...)}
}

func (z *logger) Debug(msg string, fields ...observability.Field) {
	z.l.Debug(msg, zapFields(fields)...)
}

func (z *logger) Info(msg string, fields ...observability.Field) {
	z.l.Info(msg, zapFields(fields)...)
}

func (z *logger) Warn(msg string, fields ...observability.Field) {
	z.l.Warn(msg, zapFields(fields)...)
}

func (z *logger) Error(msg string, fields ...observability.Field) {
	z.l.Error(msg, zapFields(fields)...)
}

// zapFields keeps error values as zap errors so a raw error passed with
// F("error", err) renders its message, the same as observability.Err.
func zapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		if err, ok := f.Value.(error); ok {
			out = append(out, zap.NamedError(f.Key, err))
			continue
		}
		out = append(out, zap.Any(f.Key, f.Value))
	}
	return out
}
