// Package tlog wraps go.uber.org/zap with the per-phase scoping the
// pipeline's performance report needs: every phase gets a child logger
// carrying "phase" and "doc" fields, mirroring the category-scoped
// logging helper pattern used throughout the pack for embedding/LLM
// calls (see internal/embedding's Category loggers).
package tlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.Mutex
	base *zap.Logger
)

// Init configures the process-wide base logger. Writes always go to
// stderr so stdio-mode MCP traffic on stdout is never interleaved with
// log output, matching the teacher's setupLogging convention.
func Init(debug bool) *zap.Logger {
	mu.Lock()
	defer mu.Unlock()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(os.Stderr)),
		level,
	)

	base = zap.New(core)
	return base
}

// L returns the process-wide logger, initialising a sane default
// (info level, stderr) if Init was never called.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if base == nil {
		mu.Unlock()
		Init(false)
		mu.Lock()
	}
	return base
}

// ForPhase returns a child logger scoped to a pipeline phase and
// document, used by every phase implementation to tag its log lines
// for the performance report and for operators grepping phase output.
func ForPhase(phase, doc string) *zap.Logger {
	return L().With(zap.String("phase", phase), zap.String("doc", doc))
}

// Sync flushes any buffered log entries; call before process exit.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
