// Package logging configures the global slog logger for the stash binaries.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// LevelFromVerbosity maps -v/-q flag counts to a slog level. The zero point
// is Warn so that a bare CLI invocation stays quiet; each -v lowers the
// threshold, each -q raises it.
func LevelFromVerbosity(verbose, quiet int) slog.Level {
	switch n := verbose - quiet; {
	case n <= -2:
		return slog.Level(100) // effectively silent
	case n == -1:
		return slog.LevelError
	case n == 0:
		return slog.LevelWarn
	case n == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Setup installs the global slog handler: tinted output on a terminal,
// JSON otherwise. Call once after flag parsing.
func Setup(level slog.Level) {
	w := os.Stderr

	var h slog.Handler
	if IsTTY(w) {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      level,
			TimeFormat: "15:04:05.000",
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}
	slog.SetDefault(slog.New(h))
}
