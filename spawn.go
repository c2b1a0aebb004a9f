package logfan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"
)

// ProcessOptions configures StartProcess.
type ProcessOptions struct {
	// Binary is the logfand executable, resolved via PATH when empty.
	Binary string

	// SocketPath overrides DefaultSocketPath().
	SocketPath string

	// Files and Console describe the listener's sinks in daemon config
	// syntax. The listener validates them and refuses to start on
	// duplicate paths or malformed policies.
	Files   []FileSpec
	Console *ConsoleSpec

	// Buffer is the ring buffer capacity. Zero keeps the daemon default.
	Buffer int

	// ReadyTimeout bounds the wait for the listener socket to answer.
	// Defaults to 5s.
	ReadyTimeout time.Duration

	// StopTimeout bounds Handle.Stop's drain wait. Defaults to 5s.
	StopTimeout time.Duration
}

// Handle owns a listener child process started by StartProcess.
type Handle struct {
	SocketPath string

	cmd         *exec.Cmd
	ctl         *Control
	configPath  string
	stopTimeout time.Duration
	waitErr     chan error

	stopOnce sync.Once
	stopErr  error
}

// StartProcess launches logfand as a child OS process and waits until its
// socket answers. The returned handle opens queues bound to the listener
// and stops it; stdout and stderr of the child are inherited.
func StartProcess(ctx context.Context, opts ProcessOptions) (*Handle, error) {
	bin := opts.Binary
	if bin == "" {
		bin = "logfand"
	}
	socket := opts.SocketPath
	if socket == "" {
		socket = DefaultSocketPath()
	}
	readyTimeout := opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 5 * time.Second
	}
	stopTimeout := opts.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = 5 * time.Second
	}

	cfg := struct {
		Socket  string       `json:"socket"`
		Buffer  int          `json:"buffer,omitempty"`
		Console *ConsoleSpec `json:"console,omitempty"`
		Files   []FileSpec   `json:"files,omitempty"`
	}{socket, opts.Buffer, opts.Console, opts.Files}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("logfan: encode config: %w", err)
	}
	f, err := os.CreateTemp("", "logfan-*.json")
	if err != nil {
		return nil, fmt.Errorf("logfan: temp config: %w", err)
	}
	configPath := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(configPath)
		return nil, fmt.Errorf("logfan: write config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(configPath)
		return nil, fmt.Errorf("logfan: write config: %w", err)
	}

	cmd := exec.Command(bin, "listen", "--config", configPath, "--quiet")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		os.Remove(configPath)
		return nil, fmt.Errorf("logfan: start %s: %w", bin, err)
	}

	h := &Handle{
		SocketPath:  socket,
		cmd:         cmd,
		configPath:  configPath,
		stopTimeout: stopTimeout,
		waitErr:     make(chan error, 1),
	}
	go func() { h.waitErr <- cmd.Wait() }()

	ctl, err := h.awaitReady(ctx, readyTimeout)
	if err != nil {
		_ = cmd.Process.Kill()
		<-h.waitErr
		os.Remove(configPath)
		return nil, err
	}
	h.ctl = ctl
	return h, nil
}

// awaitReady polls the listener socket until a ping succeeds, the child
// exits, or the deadline passes.
func (h *Handle) awaitReady(ctx context.Context, timeout time.Duration) (*Control, error) {
	deadline := time.Now().Add(timeout)
	for {
		if ctl, err := DialControl(h.SocketPath); err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, time.Second)
			err = ctl.Ping(pingCtx)
			cancel()
			if err == nil {
				return ctl, nil
			}
			ctl.Close()
		}

		select {
		case err := <-h.waitErr:
			h.waitErr <- err
			return nil, fmt.Errorf("logfan: listener exited during startup: %v", err)
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("logfan: listener not ready after %v", timeout)
		}
	}
}

// Queue opens a producer queue bound to this listener.
func (h *Handle) Queue(opts ...QueueOption) (*Queue, error) {
	return Dial(h.SocketPath, opts...)
}

// Control returns the handle's control connection.
func (h *Handle) Control() *Control { return h.ctl }

// Stop asks the listener to drain and exit, then waits for the child
// process, bounded by ctx and the configured stop timeout. On timeout the
// child is killed and ErrShutdownTimeout returned; callers usually log that
// and continue. A second Stop is a no-op returning the first outcome.
func (h *Handle) Stop(ctx context.Context) error {
	h.stopOnce.Do(func() { h.stopErr = h.stop(ctx) })
	return h.stopErr
}

func (h *Handle) stop(ctx context.Context) error {
	defer os.Remove(h.configPath)
	defer h.ctl.Close()

	ctx, cancel := context.WithTimeout(ctx, h.stopTimeout)
	defer cancel()

	stopErr := h.ctl.StopListener(ctx)

	select {
	case <-h.waitErr:
		return stopErr
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		<-h.waitErr
		return ErrShutdownTimeout
	}
}
