// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package logging builds the process logger.
//
// Call sites use [log/slog]; records are encoded by zap so production output
// gets zap's sampling and ISO8601 timestamps.
package logging

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder and verbosity.
type Options struct {
	Environment string
	Format      string
	Debug       bool
}

// New returns a slog logger backed by zap, plus a flush func for shutdown.
func New(opts Options) (*slog.Logger, func(), error) {
	var cfg zap.Config

	if opts.Environment == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableStacktrace = true
		cfg.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	if opts.Format == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	// Always log to stdout for containers
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	zl, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("logging: failed to build zap logger: %w", err)
	}

	return FromCore(zl.Core()), func() { _ = zl.Sync() }, nil
}

// FromCore wraps an arbitrary zap core, used by tests with observer cores.
func FromCore(core zapcore.Core) *slog.Logger {
	return slog.New(zapslog.NewHandler(core, zapslog.WithCaller(true)))
}
