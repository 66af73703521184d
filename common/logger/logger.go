// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package logger builds the zap loggers used by monotree tools.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	Development = "development"
	Production  = "production"
)

// Config describes the running environment, which is either "development"
// (debug level and above) or "production" (info level and above), an
// optional file the output is written to in addition to stderr, and
// whether stack traces should be attached to error logs.
type Config struct {
	Environment      string `toml:"env"`
	Path             string `toml:"path,omitempty"`
	EnableStacktrace bool   `toml:"enable_stacktrace,omitempty"`
}

// DefaultConfig logs at production level to stderr.
func DefaultConfig() Config {
	return Config{Environment: Production}
}

// New creates a logger writing human readable console output according to
// the given configuration.
func New(config Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	switch {
	case strings.EqualFold(Development, config.Environment):
		level.SetLevel(zap.DebugLevel)
	case strings.EqualFold(Production, config.Environment), config.Environment == "":
		level.SetLevel(zap.InfoLevel)
	default:
		return nil, fmt.Errorf("unknown logging environment %q, must be %s or %s", config.Environment, Development, Production)
	}

	outputs := []string{"stderr"}
	if config.Path != "" {
		outputs = append(outputs, config.Path)
	}

	zapConfig := zap.Config{
		Level:             level,
		Encoding:          "console",
		DisableStacktrace: !config.EnableStacktrace,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "path",
			MessageKey:     "msg",
			StacktraceKey:  "stack",
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}
	return zapConfig.Build()
}
