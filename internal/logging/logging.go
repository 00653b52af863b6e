// Package logging builds the zap loggers used across streamlog, favoring
// structured, leveled logging over the standard library's log package.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects output format and level for New.
type Config struct {
	Development bool
	Level       string // debug, info, warn, error; defaults to info
}

// New builds a *zap.Logger: JSON-encoded structured output in production,
// console-encoded and more verbose in development, matching the split
// zap.NewProduction()/zap.NewDevelopment() ship with.
func New(cfg Config) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// Component returns a child logger tagged with the owning component's
// name, the way every package in this module identifies its log lines.
func Component(base *zap.Logger, name string) *zap.Logger {
	return base.With(zap.String("component", name))
}
