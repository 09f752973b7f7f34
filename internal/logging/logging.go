// Package logging centralizes the zap logger construction shared by the
// storage engine and broker, so every component logs through the same
// structured, leveled sink instead of ad hoc fmt calls.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger writing structured JSON at or
// above level. Callers that don't care about logs (most tests) should use
// Nop instead.
func New(level zapcore.Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

// Nop returns a logger that discards everything, the default for components
// constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}
