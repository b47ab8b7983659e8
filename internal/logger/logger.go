// Package logger builds the zap logger shared by every component.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger. Development mode logs human-readable lines at
// debug level; anything else logs JSON at info level.
func New(env string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return base.Sugar().Named("auctionlist"), nil
}

// Nop returns a logger that discards everything; used by tests and callers
// that do not care about output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
