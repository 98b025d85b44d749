package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON to w at the given level. An unknown
// level string falls back to info rather than failing: the engine must
// never refuse to start over a logging knob.
func New(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Stderr returns a logger writing to stderr at the given level.
func Stderr(level string) zerolog.Logger {
	return New(os.Stderr, level)
}

// Component returns a child logger tagged with a component identifier.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("cmp", name).Logger()
}
