// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level        string
	Console      bool
	ConsoleLevel string
	ConsoleOut   io.Writer
	File         bool
	FilePath     string
	MaxSize      int // megabytes
	MaxBackups   int
	MaxAge       int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:        "info",
		Console:      true,
		ConsoleLevel: "warn",
		File:         true,
		FilePath:     filepath.Join(home, ".config", "mentor-desk", "logs", "mentor.log"),
		MaxSize:      10,
		MaxBackups:   5,
		MaxAge:       30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// Console output goes to stderr so command output on stdout stays clean.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	// Console writer
	if cfg.Console {
		out := cfg.ConsoleOut
		if out == nil {
			out = os.Stderr
		}
		consoleWriter := zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, &zerolog.FilteredLevelWriter{
			Writer: zerolog.LevelWriterAdapter{Writer: consoleWriter},
			Level:  ParseLevel(cfg.ConsoleLevel),
		})
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("app", "mentor-desk").
		Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// ContextKey is the type for context keys.
type ContextKey string

const (
	// LoggerKey is the context key for the logger.
	LoggerKey ContextKey = "logger"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	return LoggerFrom(ctx, zerolog.Nop())
}

// LoggerFrom returns the context logger, or fallback when ctx carries none.
func LoggerFrom(ctx context.Context, fallback zerolog.Logger) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return fallback
}

// WithRuleID adds a rule ID to the logger context.
func WithRuleID(logger zerolog.Logger, ruleID string) zerolog.Logger {
	return logger.With().Str("rule_id", ruleID).Logger()
}

// WithTradeID adds a trade ID to the logger context.
func WithTradeID(logger zerolog.Logger, tradeID string) zerolog.Logger {
	return logger.With().Str("trade_id", tradeID).Logger()
}

// WithOperation adds an operation name to the logger context.
func WithOperation(logger zerolog.Logger, operation string) zerolog.Logger {
	return logger.With().Str("operation", operation).Logger()
}

// LogRuleChange logs a rule mutation.
func LogRuleChange(logger zerolog.Logger, action, ruleID, direction string) {
	logger.Info().
		Str("event", "rule").
		Str("action", action).
		Str("rule_id", ruleID).
		Str("direction", direction).
		Msg("Rule changed")
}

// LogTradeChange logs a trade mutation.
func LogTradeChange(logger zerolog.Logger, action, tradeID, pair, status string) {
	logger.Info().
		Str("event", "trade").
		Str("action", action).
		Str("trade_id", tradeID).
		Str("pair", pair).
		Str("status", status).
		Msg("Trade changed")
}

// LogEvaluation logs a checklist evaluation.
func LogEvaluation(logger zerolog.Logger, direction, outcome string, evaluated int, duration time.Duration) {
	logger.Debug().
		Str("event", "evaluation").
		Str("direction", direction).
		Str("outcome", outcome).
		Int("evaluated", evaluated).
		Dur("duration", duration).
		Msg("Scenario evaluated")
}
