package httpcore

import (
	"os"

	"github.com/rs/zerolog"
)

// Logger is the process-wide pluggable log sink (spec.md §3): every
// Connection logs exactly one structured line on close (method, path,
// status, bytes, duration), and any other ambient diagnostic that used to
// go through the standard library's log package routes through the same
// sink instead.
type Logger interface {
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
}

// ZerologLogger adapts a zerolog.Logger to Logger. It is the default
// backend, matching the teacher's fiber/v2/log-shaped structured logger.
type ZerologLogger struct {
	Logger zerolog.Logger
}

func (z ZerologLogger) Info(msg string, fields map[string]any) { z.log(z.Logger.Info(), msg, fields) }
func (z ZerologLogger) Warn(msg string, fields map[string]any) { z.log(z.Logger.Warn(), msg, fields) }

func (z ZerologLogger) log(e *zerolog.Event, msg string, fields map[string]any) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

var defaultLogger Logger = ZerologLogger{Logger: zerolog.New(os.Stderr).With().Timestamp().Logger()}

// SetDefaultLogger overrides the process-wide Logger used by call sites
// that have no Logger threaded down to them explicitly — Connection's
// default Close hook and form.go's skip-and-log path. httpserver.Server
// calls this with its own configured sink on construction.
func SetDefaultLogger(l Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// DefaultLogger returns the current process-wide Logger.
func DefaultLogger() Logger { return defaultLogger }
