package ddbstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// SlogLogger routes badger's logging to l. Badger's info messages are
// housekeeping and are logged at debug level.
func SlogLogger(l *slog.Logger) badger.Logger {
	return slogLogger{l.With(slog.String("component", "badger"))}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) log(level slog.Level, format string, args ...any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, fmt.Sprintf(format, args...))
}

func (s slogLogger) Errorf(format string, args ...any)   { s.log(slog.LevelError, format, args...) }
func (s slogLogger) Warningf(format string, args ...any) { s.log(slog.LevelWarn, format, args...) }
func (s slogLogger) Infof(format string, args ...any)    { s.log(slog.LevelDebug, format, args...) }
func (s slogLogger) Debugf(format string, args ...any)   { s.log(slog.LevelDebug, format, args...) }
