package logfan

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

func flushQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestHandlerEnabled(t *testing.T) {
	h := &Handler{opts: HandlerOptions{Level: LevelWarning}}
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("INFO should be disabled at WARNING threshold")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("WARN should be enabled at WARNING threshold")
	}

	// The local echo keeps lower levels alive even when forwarding is
	// filtered.
	h = &Handler{opts: HandlerOptions{
		Level:         LevelWarning,
		ConsoleOutput: true,
		ConsoleLevel:  LevelTrace,
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("DEBUG should be enabled for the echo path")
	}
}

func TestHandlerForwardsRecord(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	logger := slog.New(NewHandler(q, HandlerOptions{}))
	logger.Info("checkout done", "user", "ada", "amount", 42)
	flushQueue(t, q)

	readLine(t, lines) // hello
	env := decodeFrame(t, readLine(t, lines))
	rec := env.Record
	if rec == nil {
		t.Fatalf("not a record frame: %+v", env)
	}
	if rec.Level != LevelInfo {
		t.Errorf("level = %v, want INFO", rec.Level)
	}
	if rec.Message != "checkout done" {
		t.Errorf("message = %q", rec.Message)
	}
	if rec.Process != os.Getpid() {
		t.Errorf("process = %d, want %d", rec.Process, os.Getpid())
	}
	if rec.File != "handler_test.go" || rec.Line == 0 {
		t.Errorf("source = %s:%d", rec.File, rec.Line)
	}
	if rec.Attrs["user"] != "ada" {
		t.Errorf("attrs = %v", rec.Attrs)
	}
	// JSON numbers decode as float64.
	if rec.Attrs["amount"] != float64(42) {
		t.Errorf("attrs = %v", rec.Attrs)
	}
}

func TestHandlerLiftsError(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	logger := slog.New(NewHandler(q, HandlerOptions{}))
	logger.Error("write failed", "err", errors.New("disk full"))
	flushQueue(t, q)

	readLine(t, lines) // hello
	rec := decodeFrame(t, readLine(t, lines)).Record
	if rec == nil {
		t.Fatal("missing record")
	}
	if rec.Err != "disk full" {
		t.Errorf("error = %q, want \"disk full\"", rec.Err)
	}
	if _, ok := rec.Attrs["err"]; ok {
		t.Error("lifted error should not stay in attrs")
	}
}

func TestHandlerGroupsBecomeLogger(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	logger := slog.New(NewHandler(q, HandlerOptions{})).WithGroup("web").WithGroup("checkout")
	logger.Info("hi")
	flushQueue(t, q)

	readLine(t, lines) // hello
	rec := decodeFrame(t, readLine(t, lines)).Record
	if rec == nil || rec.Logger != "web.checkout" {
		t.Fatalf("logger = %+v, want web.checkout", rec)
	}
}

func TestHandlerWithAttrsIsolated(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	base := slog.New(NewHandler(q, HandlerOptions{}))
	a := base.With("side", "a")
	b := base.With("side", "b")

	a.Info("from a")
	b.Info("from b")
	flushQueue(t, q)

	readLine(t, lines) // hello
	first := decodeFrame(t, readLine(t, lines)).Record
	second := decodeFrame(t, readLine(t, lines)).Record
	if first == nil || second == nil {
		t.Fatal("missing records")
	}
	if first.Attrs["side"] != "a" || second.Attrs["side"] != "b" {
		t.Errorf("siblings share attrs: %v / %v", first.Attrs, second.Attrs)
	}
}

func TestHandlerEcho(t *testing.T) {
	path := testSocket(t)
	acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	var buf bytes.Buffer
	h := NewHandler(q, HandlerOptions{
		Level:         LevelCritical, // nothing forwards
		ConsoleOutput: true,
		ConsoleLevel:  LevelInfo,
	})
	h.echo = &buf

	logger := slog.New(h)
	logger.Info("local only")
	logger.Debug("below echo threshold")

	out := buf.String()
	if !strings.Contains(out, "local only") {
		t.Errorf("echo missing record: %q", out)
	}
	if strings.Contains(out, "below echo threshold") {
		t.Errorf("echo should filter by its own level: %q", out)
	}
}
