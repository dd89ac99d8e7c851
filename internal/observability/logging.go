// Package observability provides the process-wide loggers and metrics.
//
// All logging goes through zap; job/user context is attached per call site
// with logger.With(...) fields rather than ambient global state.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger. It is a no-op until Init is called,
// so library code can log unconditionally.
var CLILogger = zap.NewNop()

// Init builds the process-wide logger.
//
// level is a zap level string ("debug", "info", ...). When basic is true,
// logs go to stderr in console form instead of JSON; that matches local
// operation, while deployments scrape the JSON stream.
func Init(level string, basic bool) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if basic {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Call on process exit.
func Sync() {
	_ = CLILogger.Sync()
}
