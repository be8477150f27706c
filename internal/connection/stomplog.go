package connection

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-stomp/stomp/v3"
)

// stompLogger routes go-stomp's internal logging through slog.
type stompLogger struct {
	logger *slog.Logger
}

var _ stomp.Logger = stompLogger{}

func newStompLogger(logger *slog.Logger) stompLogger {
	return stompLogger{logger: logger.With("source", "stomp")}
}

func (l stompLogger) logf(level slog.Level, format string, args ...interface{}) {
	if !l.logger.Enabled(context.Background(), level) {
		return
	}
	l.logger.Log(context.Background(), level, fmt.Sprintf(format, args...))
}

func (l stompLogger) Debugf(format string, args ...interface{}) {
	l.logf(slog.LevelDebug, format, args...)
}

func (l stompLogger) Infof(format string, args ...interface{}) {
	l.logf(slog.LevelInfo, format, args...)
}

func (l stompLogger) Warningf(format string, args ...interface{}) {
	l.logf(slog.LevelWarn, format, args...)
}

func (l stompLogger) Errorf(format string, args ...interface{}) {
	l.logf(slog.LevelError, format, args...)
}

func (l stompLogger) Debug(msg string)   { l.logger.Debug(msg) }
func (l stompLogger) Info(msg string)    { l.logger.Info(msg) }
func (l stompLogger) Warning(msg string) { l.logger.Warn(msg) }
func (l stompLogger) Error(msg string)   { l.logger.Error(msg) }
