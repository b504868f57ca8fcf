package vecstore

import (
	"io"

	"github.com/rs/zerolog"
)

// nopLogger returns a logger that discards all output, used whenever a
// constructor is handed a nil *zerolog.Logger. This avoids a package-level
// global logger (spec.md §9's redesign note on ambient global loggers):
// every component that logs takes its logger as an explicit, optional
// constructor argument, the way edirooss-zmux-server injects *zap.Logger
// into its components.
func nopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func orNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return nopLogger()
	}

	return *l
}
