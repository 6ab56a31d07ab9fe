// Package logging provides categorized, debug-gated file logging for the
// RTM core, built on zap. Each subsystem logs to its own file under the
// workspace log directory. When debug mode is off — the default — every
// logger is a silent no-op: the core never writes to stdout or stderr on
// its own.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a logging subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // startup and wiring
	CategoryStore      Category = "store"      // record store operations
	CategoryCodec      Category = "codec"      // tabular load/save
	CategoryGraph      Category = "graph"      // dependency graph builds and queries
	CategoryValidation Category = "validation" // validation passes
	CategoryCoverage   Category = "coverage"   // coverage collection and transitions
	CategoryFederation Category = "federation" // grants, shadows, decisions
	CategorySync       Category = "sync"       // CRDT updates and offline store
	CategoryHealth     Category = "health"     // health suite runs
)

// Options configure the logging system.
type Options struct {
	// Dir is the directory log files are written to.
	Dir string
	// Debug enables logging. When false, Initialize is a no-op and every
	// logger discards.
	Debug bool
	// Level is the minimum level: "debug", "info", "warn", "error".
	Level string
}

var (
	mu      sync.RWMutex
	loggers = map[Category]*zap.SugaredLogger{}
	opts    Options
	active  bool
)

// Initialize configures the logging directory. Safe to call once at
// startup; calling again reconfigures.
func Initialize(o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	loggers = map[Category]*zap.SugaredLogger{}
	active = false

	if !o.Debug {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("logging directory required in debug mode")
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	active = true
	return nil
}

func level() zapcore.Level {
	switch opts.Level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Get returns the logger for a category, creating it on first use.
// Inactive logging yields a no-op logger.
func Get(category Category) *zap.SugaredLogger {
	mu.RLock()
	if logger, ok := loggers[category]; ok {
		mu.RUnlock()
		return logger
	}
	isActive := active
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger, ok := loggers[category]; ok {
		return logger
	}

	if !isActive || !active {
		logger := zap.NewNop().Sugar()
		loggers[category] = logger
		return logger
	}

	path := filepath.Join(opts.Dir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		logger := zap.NewNop().Sugar()
		loggers[category] = logger
		return logger
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(file)),
		level(),
	)
	logger := zap.New(core).Named(string(category)).Sugar()
	loggers[category] = logger
	return logger
}

// Sync flushes every active logger. Called before process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	for _, logger := range loggers {
		_ = logger.Sync()
	}
}
