package logger

import (
	"io"
	"os"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// New returns a logfmt logger writing to stderr, filtered at the given level.
func New(lvl string) log.Logger {
	return NewWithWriter(os.Stderr, lvl)
}

func NewWithWriter(w io.Writer, lvl string) log.Logger {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = level.NewFilter(l, levelOption(lvl))
	return log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}

// Nop discards everything. Used by tests and optional components.
func Nop() log.Logger {
	return log.NewNopLogger()
}

// Component tags every line with the subsystem that emitted it.
func Component(l log.Logger, name string) log.Logger {
	if l == nil {
		l = log.NewNopLogger()
	}
	return log.With(l, "component", name)
}

func levelOption(lvl string) level.Option {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
