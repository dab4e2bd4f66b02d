// Package logging hands out zap loggers. Every subsystem gets a named debug
// logger that stays silent unless HALO_DEBUG_<NAME>=1 is set, e.g.
// HALO_DEBUG_MEMORY=1 for the buffer cache.
package logging

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	baseOnce sync.Once
	base     *zap.SugaredLogger
)

// Base returns the process-wide logger used for warnings and fatal errors.
// It's always enabled at info level.
func Base() *zap.SugaredLogger {
	baseOnce.Do(func() {
		base = build(zapcore.InfoLevel).Sugar()
	})
	return base
}

// Named returns a debug logger for the given subsystem. It's a no-op logger
// unless the subsystem's environment toggle is set.
func Named(name string) *zap.SugaredLogger {
	if !Enabled(name) {
		return zap.NewNop().Sugar()
	}
	return build(zapcore.DebugLevel).Named(name).Sugar()
}

// Enabled reports whether HALO_DEBUG_<NAME>=1.
func Enabled(name string) bool {
	return os.Getenv("HALO_DEBUG_"+strings.ToUpper(name)) == "1"
}

func build(level zapcore.Level) *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	config.OutputPaths = []string{"stdout"}

	logger, err := config.Build()
	if err != nil {
		// Nothing sensible to log to; fall back to a silent logger.
		return zap.NewNop()
	}
	return logger
}
