// Package rlog is the structured logger used across this module. It
// wraps log/slog the way github.com/ethereum/go-ethereum's own log
// package does: a small Logger interface with level methods taking
// alternating key/value pairs, a New(ctx...) method for attaching
// sublogger context, and a terminal handler that colorizes level
// labels when stdout is an interactive TTY (mattn/go-isatty) and
// writes through mattn/go-colorable so color codes survive on
// Windows consoles too.
package rlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Logger is the interface every package in this module accepts
// instead of a concrete type, so tests can substitute a
// discard-writer logger via NewWithWriter.
type Logger interface {
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	New(ctx ...any) Logger
}

type logger struct {
	inner *slog.Logger
}

// New returns a Logger writing to os.Stdout with a TTY-aware
// handler. Additional ctx key/value pairs are attached to every
// subsequent record, mirroring slog.Logger.With.
func New(ctx ...any) Logger {
	l := &logger{inner: slog.New(newHandler(os.Stdout))}
	return l.with(ctx...)
}

// NewWithWriter returns a Logger writing to an arbitrary writer
// without color (used by tests and non-interactive deployments).
func NewWithWriter(w io.Writer) Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &logger{inner: slog.New(h)}
}

func (l *logger) with(ctx ...any) Logger {
	if len(ctx) == 0 {
		return l
	}
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) Debug(msg string, ctx ...any) { l.inner.Debug(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.inner.Info(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.inner.Warn(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.inner.Error(msg, ctx...) }
func (l *logger) New(ctx ...any) Logger        { return l.with(ctx...) }

// termHandler is a minimal slog.Handler that renders records the way
// go-ethereum's log/term handler does: a colored, left-padded level
// tag followed by the message and "key=value" attributes.
type termHandler struct {
	w     io.Writer
	color bool
	attrs []slog.Attr
}

func newHandler(w io.Writer) slog.Handler {
	out := w
	var useColor bool
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
		out = colorable.NewColorable(f)
	}
	return &termHandler{w: out, color: useColor}
}

func (h *termHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *termHandler) Handle(_ context.Context, r slog.Record) error {
	level := levelTag(r.Level, h.color)
	line := fmt.Sprintf("%s[%s] %s", level, r.Time.Format("01-02|15:04:05.000"), r.Message)
	for _, a := range h.attrs {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		line += fmt.Sprintf(" %s=%v", a.Key, a.Value.Any())
		return true
	})
	_, err := fmt.Fprintln(h.w, line)
	return err
}

func (h *termHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &termHandler{w: h.w, color: h.color}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *termHandler) WithGroup(string) slog.Handler { return h }

func levelTag(lvl slog.Level, useColor bool) string {
	switch {
	case lvl >= slog.LevelError:
		return paint(useColor, color.FgRed, "ERROR")
	case lvl >= slog.LevelWarn:
		return paint(useColor, color.FgYellow, "WARN ")
	case lvl >= slog.LevelInfo:
		return paint(useColor, color.FgGreen, "INFO ")
	default:
		return paint(useColor, color.FgCyan, "DEBUG")
	}
}

func paint(useColor bool, attr color.Attribute, s string) string {
	if !useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}
