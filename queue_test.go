package logfan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testSocket returns a socket path short enough for the sun_path limit,
// which t.TempDir does not guarantee.
func testSocket(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "logfan")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "l.sock")
}

// acceptLines serves one connection on path and forwards each line it
// reads. The channel closes when the producer disconnects.
func acceptLines(t *testing.T, path string) <-chan string {
	t.Helper()
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 100)
	go func() {
		defer close(lines)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

func readLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case s, ok := <-lines:
		if !ok {
			t.Fatal("connection closed early")
		}
		return s
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a frame")
	}
	return ""
}

func decodeFrame(t *testing.T, line string) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		t.Fatalf("bad frame %q: %v", line, err)
	}
	return env
}

func TestDialSendsHelloFirst(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path, WithProducerName("test-producer"))
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	env := decodeFrame(t, readLine(t, lines))
	if env.Type != FrameHello {
		t.Fatalf("first frame type = %q, want hello", env.Type)
	}
	if env.Producer == nil || env.Producer.ID == "" {
		t.Fatal("hello frame missing producer identity")
	}
	if env.Producer.PID != os.Getpid() {
		t.Errorf("producer pid = %d, want %d", env.Producer.PID, os.Getpid())
	}
	if env.Producer.Name != "test-producer" {
		t.Errorf("producer name = %q", env.Producer.Name)
	}
}

func TestSendOrderPreserved(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	defer q.Close()

	for i := 0; i < 5; i++ {
		rec := &Record{Level: LevelInfo, Message: string(rune('a' + i))}
		if err := q.Send(rec); err != nil {
			t.Fatal(err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := q.Flush(ctx); err != nil {
		t.Fatal(err)
	}

	readLine(t, lines) // hello
	for i := 0; i < 5; i++ {
		env := decodeFrame(t, readLine(t, lines))
		if env.Type != FrameRecord || env.Record == nil {
			t.Fatalf("frame %d: %+v", i, env)
		}
		if want := string(rune('a' + i)); env.Record.Message != want {
			t.Errorf("frame %d message = %q, want %q", i, env.Record.Message, want)
		}
	}
}

func TestStopSentinelAfterRecords(t *testing.T) {
	path := testSocket(t)
	lines := acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Send(&Record{Level: LevelInfo, Message: "last words"}); err != nil {
		t.Fatal(err)
	}
	if err := q.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	readLine(t, lines) // hello
	if env := decodeFrame(t, readLine(t, lines)); env.Type != FrameRecord {
		t.Fatalf("expected the record before the stop, got %q", env.Type)
	}
	if env := decodeFrame(t, readLine(t, lines)); env.Type != FrameStop {
		t.Fatalf("expected stop frame, got %q", env.Type)
	}
}

func TestSendAfterClose(t *testing.T) {
	path := testSocket(t)
	acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Send(&Record{Message: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Send after Close = %v, want ErrQueueClosed", err)
	}
	if err := q.Stop(); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Stop after Close = %v, want ErrQueueClosed", err)
	}
}

func TestSendDropOnFull(t *testing.T) {
	// No writer goroutine and no capacity, so the buffer is always full.
	q := &Queue{
		ch:   make(chan *Record),
		done: make(chan struct{}),
		drop: true,
	}
	if err := q.Send(&Record{Message: "x"}); err != nil {
		t.Fatalf("Send should drop, not fail: %v", err)
	}
	if got := q.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestSendNilRejected(t *testing.T) {
	q := &Queue{
		ch:   make(chan *Record, 1),
		done: make(chan struct{}),
	}
	if err := q.Send(nil); !errors.Is(err, ErrNilRecord) {
		t.Fatalf("Send(nil) = %v, want ErrNilRecord", err)
	}
	if len(q.ch) != 0 {
		t.Error("nil record reached the buffer")
	}
}

func TestQueueUnavailableAfterFailure(t *testing.T) {
	path := testSocket(t)
	acceptLines(t, path)

	q, err := Dial(path)
	if err != nil {
		t.Fatal(err)
	}
	q.fail(errors.New("connection reset"))

	if err := q.Send(&Record{Message: "x"}); !errors.Is(err, ErrQueueUnavailable) {
		t.Errorf("Send = %v, want ErrQueueUnavailable", err)
	}
	if err := q.Stop(); !errors.Is(err, ErrQueueUnavailable) {
		t.Errorf("Stop = %v, want ErrQueueUnavailable", err)
	}
	if err := q.Close(); !errors.Is(err, ErrQueueUnavailable) {
		t.Errorf("Close = %v, want ErrQueueUnavailable", err)
	}
}

func TestDialWithoutListener(t *testing.T) {
	if _, err := Dial(filepath.Join(os.TempDir(), "logfan-nowhere.sock")); err == nil {
		t.Fatal("Dial should fail without a listener")
	}
}
