// Package logging provides categorized structured logging for the
// legacy-modernization workbench, built on zap.
//
// Every subsystem gets a named child logger ("graph", "executor",
// "migration", ...) carrying a "component" field, so log lines are
// filterable without a bespoke per-category file multiplexer.
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base *zap.Logger
)

// Init builds the process-wide base logger. verbose gates debug-level
// output the same way cmd/legacymod's root command gates --verbose.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	base = l
	mu.Unlock()
	return nil
}

// Sync flushes any buffered log entries. Call on process exit.
func Sync() {
	mu.RLock()
	l := base
	mu.RUnlock()
	if l != nil {
		_ = l.Sync()
	}
}

// SetForTest installs l as the base logger and returns a func that
// restores whatever was installed before, for tests in other packages
// that need to assert on emitted log lines.
func SetForTest(l *zap.Logger) func() {
	mu.Lock()
	prev := base
	base = l
	mu.Unlock()
	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

func root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if base == nil {
		return zap.NewNop()
	}
	return base
}

// Named returns a child logger tagged with the given component name.
func Named(component string) *zap.Logger {
	return root().With(zap.String("component", component))
}

// Timer measures and logs the duration of a named operation when Stop
// is called.
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing op within the given component's logger.
func StartTimer(component, op string) *Timer {
	return &Timer{log: Named(component), op: op, start: time.Now()}
}

// Stop logs the elapsed duration at debug level.
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.log.Debug("timed operation", zap.String("op", t.op), zap.Duration("elapsed", time.Since(t.start)))
}
