/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package lifecycle holds process plumbing shared by the binaries: logger
// construction and the start/wait/stop loop for long-running services.
package lifecycle

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/carverauto/connectbridge/pkg/logger"
)

// InitializeLogger configures the process-wide logger. A nil config uses
// logger.DefaultConfig.
func InitializeLogger(ctx context.Context, config *logger.Config) error {
	if config == nil {
		config = logger.DefaultConfig()
	}

	if err := logger.Init(ctx, config); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

// LoggerImpl implements logger.Logger over an owned zerolog.Logger.
type LoggerImpl struct {
	logger zerolog.Logger
}

// NewLoggerImpl builds an injectable logger from config.
func NewLoggerImpl(ctx context.Context, config *logger.Config) (*LoggerImpl, error) {
	zlog, err := logger.New(ctx, config)
	if err != nil {
		return nil, err
	}

	return &LoggerImpl{logger: zlog}, nil
}

func (l *LoggerImpl) Trace() *zerolog.Event { return l.logger.Trace() }
func (l *LoggerImpl) Debug() *zerolog.Event { return l.logger.Debug() }
func (l *LoggerImpl) Info() *zerolog.Event  { return l.logger.Info() }
func (l *LoggerImpl) Warn() *zerolog.Event  { return l.logger.Warn() }
func (l *LoggerImpl) Error() *zerolog.Event { return l.logger.Error() }
func (l *LoggerImpl) Fatal() *zerolog.Event { return l.logger.Fatal() }
func (l *LoggerImpl) Panic() *zerolog.Event { return l.logger.Panic() }
func (l *LoggerImpl) With() zerolog.Context { return l.logger.With() }

func (l *LoggerImpl) WithComponent(component string) zerolog.Logger {
	return l.logger.With().Str("component", component).Logger()
}

func (l *LoggerImpl) WithFields(fields map[string]interface{}) zerolog.Logger {
	ctx := l.logger.With()
	for key, value := range fields {
		ctx = ctx.Interface(key, value)
	}

	return ctx.Logger()
}

func (l *LoggerImpl) SetLevel(level zerolog.Level) {
	l.logger = l.logger.Level(level)
}

func (l *LoggerImpl) SetDebug(debug bool) {
	if debug {
		l.SetLevel(zerolog.DebugLevel)
	} else {
		l.SetLevel(zerolog.InfoLevel)
	}
}

// CreateLogger returns a logger that can be injected into services.
func CreateLogger(ctx context.Context, config *logger.Config) (logger.Logger, error) {
	return NewLoggerImpl(ctx, config)
}

// CreateComponentLogger returns an injectable logger tagged with component.
func CreateComponentLogger(ctx context.Context, component string, config *logger.Config) (logger.Logger, error) {
	impl, err := NewLoggerImpl(ctx, config)
	if err != nil {
		return nil, err
	}

	return &LoggerImpl{logger: impl.logger.With().Str("component", component).Logger()}, nil
}

// ShutdownLogger flushes pending OTLP logs and metrics.
func ShutdownLogger() error {
	return logger.Shutdown()
}
