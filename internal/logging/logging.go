// Package logging configures the global slog logger for the firmware binary.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pwntr/tinter"
)

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// Setup configures the global slog logger. Call once after flag parsing.
//
// format is "auto", "text", or "json"; "auto" picks the human-readable
// tinter handler on a terminal and JSON otherwise. An empty level defaults
// to debug when interactive and info otherwise.
func Setup(format, level string, interactive bool) {
	w := os.Stderr

	var lvl slog.Level
	if level == "" {
		lvl = slog.LevelInfo
		if interactive {
			lvl = slog.LevelDebug
		}
	} else if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	useTint := false
	switch strings.ToLower(format) {
	case "text", "tint", "human":
		useTint = true
	case "json":
	default:
		useTint = IsTTY(w)
	}

	var h slog.Handler
	if useTint {
		h = tinter.NewHandler(w, &tinter.Options{
			Level:      lvl,
			TimeFormat: "15:04:05.000",
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(h))
}
