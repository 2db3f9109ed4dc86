// Package logger is a leveled slog wrapper configured from the environment.
//
// LOG_LEVEL selects the minimum level (TRACE, DEBUG, INFO, WARN, ERROR, FATAL),
// LOG_FORMAT selects the handler (text or json) and ERROR_SAMPLE_RATE logs
// one out of every N warnings and errors. OTEL_ENABLED=true ships records over
// OTLP instead, named after OTEL_SERVICE_NAME. Output goes to stderr so that
// command output on stdout stays clean.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// Type alias for slog.Level for easier usage
type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug // -4
	LevelInfo    = slog.LevelInfo  // 0
	LevelWarning = slog.LevelWarn  // 4
	LevelError   = slog.LevelError // 8
	LevelFatal   = slog.Level(12)  // 12
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	Logger          *slog.Logger
	errorSampleRate int32 = 1 // every warning and error is logged unless ERROR_SAMPLE_RATE says otherwise
	programLevel          = new(slog.LevelVar)
)

// Counters are incremented regardless of sampling
var (
	TotalErrors      atomic.Int64
	TotalWarnings    atomic.Int64
	TotalDiagnostics atomic.Int64
	Total5xxErrors   atomic.Int64
	Total4xxErrors   atomic.Int64
)

func init() {
	Configure(os.Getenv, os.Stderr)
}

// Configure (re)builds the logger from environment lookups, writing to w
func Configure(getenv func(string) string, w io.Writer) {
	_ = Shutdown(context.Background())

	levelStr := getenv("LOG_LEVEL")
	if levelStr == "" {
		levelStr = "INFO"
	}

	level, err := ParseLevel(levelStr)
	if err != nil {
		level = slog.LevelInfo
	}
	programLevel.Set(level)

	if sampleStr := getenv("ERROR_SAMPLE_RATE"); sampleStr != "" {
		if rate, err := strconv.Atoi(sampleStr); err == nil && rate > 0 {
			atomic.StoreInt32(&errorSampleRate, int32(rate))
		}
	}

	SetOutput(w, getenv("LOG_FORMAT"))

	if otelEnabled(getenv) {
		serviceName := getenv("OTEL_SERVICE_NAME")
		if serviceName == "" {
			serviceName = "csv-etl"
		}
		shutdown, err := setupOTELLogging(context.Background(), serviceName)
		if err != nil {
			Logger.Warn("failed to set up OTEL logging, keeping local handler", "error", err)
			return
		}
		shutdownFunc = shutdown
	}
}

// SetOutput replaces the handler, keeping the current level
func SetOutput(w io.Writer, format string) {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(lvl))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
}

func levelName(l slog.Level) string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelFatal:
		return "FATAL"
	default:
		return l.String()
	}
}

// SetLevel sets the minimum log level for the logger
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a string level name to slog.Level
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

// shouldSample returns true if we should log this message
// Uses sampling to reduce log volume (1 out of every N messages)
func shouldSample() bool {
	rate := atomic.LoadInt32(&errorSampleRate)
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs a trace-level message (never sampled)
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug-level message (never sampled)
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info-level message (never sampled)
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning-level message WITH SAMPLING
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error logs an error-level message WITH SAMPLING
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Diagnostic logs a per-row conversion failure at warning level WITH SAMPLING
func Diagnostic(msg string, args ...any) {
	TotalDiagnostics.Add(1)
	Warn(msg, args...)
}

// Fatal logs a fatal-level message and exits (never sampled)
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	_ = Shutdown(context.Background())
	os.Exit(1)
}

// ErrorHttp5xx counts a server-side HTTP failure
func ErrorHttp5xx() {
	Total5xxErrors.Add(1)
	TotalErrors.Add(1)
}

// WarnHttp4xx counts a client-side HTTP failure
func WarnHttp4xx() {
	Total4xxErrors.Add(1)
	TotalWarnings.Add(1)
}
