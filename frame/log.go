package frame

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled reports false, so
// callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger sets the logger used by renderers whose Config has
// no logger of its own. By default nothing is logged.
// Pass nil to restore the silent default.
//
// Log levels used by the package:
//   - [slog.LevelDebug]: per-frame diagnostics (staleness, postponed recreation)
//   - [slog.LevelInfo]: swapchain (re)creation
//   - [slog.LevelWarn]: dropped frames, capped deferred recreation
//   - [slog.LevelError]: failed recreation, device loss
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the package logger.
func Logger() *slog.Logger { return loggerPtr.Load() }
