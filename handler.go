package logfan

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// HandlerOptions configures a producer binding.
type HandlerOptions struct {
	// Level is the minimum severity forwarded to the listener. Defaults to
	// TRACE; the listener's sinks apply their own thresholds.
	Level Level

	// ConsoleOutput echoes matching records to this process's own stderr,
	// independent of the listener's console sink. When both are enabled the
	// two outputs may interleave; producers that want a local echo accept
	// that.
	ConsoleOutput bool

	// ConsoleLevel is the minimum severity for the local echo. Defaults to
	// TRACE.
	ConsoleLevel Level
}

// Handler is a slog.Handler that forwards records to a listener queue.
type Handler struct {
	q      *Queue
	opts   HandlerOptions
	attrs  []slog.Attr
	groups []string
	echo   io.Writer
}

// NewHandler builds a binding on q. The handler only enqueues; the queue's
// writer goroutine does the socket work.
func NewHandler(q *Queue, opts HandlerOptions) *Handler {
	if opts.Level == 0 {
		opts.Level = LevelTrace
	}
	if opts.ConsoleLevel == 0 {
		opts.ConsoleLevel = LevelTrace
	}
	return &Handler{q: q, opts: opts, echo: os.Stderr}
}

// Bind installs a handler on q as the process-wide default logger and
// returns it. Calling Bind again replaces the previous binding wholesale:
// there is exactly one default delivering to a queue at any time, so
// rebinding never duplicates records.
func Bind(q *Queue, opts HandlerOptions) *Handler {
	h := NewHandler(q, opts)
	slog.SetDefault(slog.New(h))
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	lvl := LevelFromSlog(level)
	if lvl >= h.opts.Level {
		return true
	}
	return h.opts.ConsoleOutput && lvl >= h.opts.ConsoleLevel
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := &Record{
		Time:    r.Time,
		Level:   LevelFromSlog(r.Level),
		Message: r.Message,
		Process: os.Getpid(),
		Thread:  "goroutine", // Go doesn't expose thread identity
		Logger:  strings.Join(h.groups, "."),
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}

	if r.PC != 0 {
		fs := runtime.CallersFrames([]uintptr{r.PC})
		f, _ := fs.Next()
		rec.File = filepath.Base(f.File)
		rec.Line = f.Line
		if i := strings.LastIndexByte(f.Function, '.'); i >= 0 {
			rec.Function = f.Function[i+1:]
		} else {
			rec.Function = f.Function
		}
	}

	addAttr := func(a slog.Attr) {
		if a.Key == "" {
			return
		}
		v := a.Value.Resolve()
		if err, ok := v.Any().(error); ok && rec.Err == "" {
			rec.Err = err.Error()
			return
		}
		if rec.Attrs == nil {
			rec.Attrs = make(map[string]any)
		}
		rec.Attrs[a.Key] = v.Any()
	}
	for _, a := range h.attrs {
		addAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(a)
		return true
	})

	if rec.Level >= h.opts.Level {
		// Queue failures surface on stderr from the queue itself; they are
		// not returned here so logging can never take the application down.
		_ = h.q.Send(rec)
	}
	if h.opts.ConsoleOutput && rec.Level >= h.opts.ConsoleLevel {
		fmt.Fprintln(h.echo, rec.FormatText())
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(h2.attrs[:len(h2.attrs):len(h2.attrs)], attrs...)
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(h2.groups[:len(h2.groups):len(h2.groups)], name)
	return &h2
}
