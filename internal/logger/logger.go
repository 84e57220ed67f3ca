// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logger provides the component-scoped logger used across the
// publisher, backed by rs/zerolog.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// Options controls output format and level. The zero value logs JSON at info.
type Options struct {
	Level  string // zerolog level name: debug, info, warn, error
	Format string // "json" or "console"
	Out    io.Writer
}

// Nop implements Logger with no-op methods.
type Nop struct{}

func (Nop) Debugf(string, ...any) {}
func (Nop) Infof(string, ...any)  {}
func (Nop) Warnf(string, ...any)  {}
func (Nop) Errorf(string, ...any) {}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// New returns a Logger for the given component with default options. The
// console format is selected when APP_ENV=dev.
func New(component string) Logger {
	return NewWithOptions(component, Options{})
}

// NewWithOptions creates a ZerologLogger. All entries carry the component field.
func NewWithOptions(component string, opts Options) *ZerologLogger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	format := strings.ToLower(opts.Format)
	if format == "" && strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		format = "console"
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			lvl = parsed
		}
	}

	z := zerolog.New(out).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
