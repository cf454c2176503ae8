// Package logger builds the process-wide slog logger.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns the configured logger. Development environments get
// colored text on stdout; everything else emits JSON for the log
// shipper.
func New(appName, level, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if isDevEnvironment(environment) {
		handler = newColorHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With("app", appName)
}

func isDevEnvironment(environment string) bool {
	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		return true
	}
	return false
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const colorReset = "\033[0m"

// Level tokens as slog.TextHandler prints them, mapped to ANSI colors.
var levelColors = map[string]string{
	"level=DEBUG": "\033[36m",
	"level=INFO":  "\033[32m",
	"level=WARN":  "\033[33m",
	"level=ERROR": "\033[31m",
}

// colorHandler is a TextHandler writing through a colorizing writer.
// Colors engage only when the destination is a terminal.
type colorHandler struct {
	slog.Handler
	out io.Writer
}

func newColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	cw := &colorizingWriter{out: w, enabled: isTerminal(w)}
	return &colorHandler{
		Handler: slog.NewTextHandler(cw, opts),
		out:     w,
	}
}

func (h *colorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.Handler.Enabled(ctx, level)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithAttrs(attrs), out: h.out}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{Handler: h.Handler.WithGroup(name), out: h.out}
}

type colorizingWriter struct {
	out     io.Writer
	enabled bool
}

func (w *colorizingWriter) Write(p []byte) (int, error) {
	if !w.enabled {
		return w.out.Write(p)
	}

	text := string(p)
	for token, color := range levelColors {
		text = strings.ReplaceAll(text, token, color+token+colorReset)
	}

	// Report the original length so the TextHandler never sees a
	// short-write from the injected escape codes.
	_, err := w.out.Write([]byte(text))
	return len(p), err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
