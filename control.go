package logfan

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// Control is a controller's connection to a listener: ring buffer access,
// stats and shutdown. Calls are serialized under a mutex, so one Control
// may be shared across goroutines.
type Control struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	next int64
}

// DialControl connects to the listener's control surface. It uses the same
// socket producers do; record and control traffic share one endpoint.
func DialControl(socketPath string) (*Control, error) {
	conn, err := net.DialTimeout("unix", socketPath, defaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("logfan: dial %s: %w", socketPath, err)
	}
	return &Control{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Ping checks that the listener is accepting work.
func (c *Control) Ping(ctx context.Context) error {
	return c.call(ctx, MethodPing, nil, nil)
}

// Stats returns a snapshot of the listener's counters.
func (c *Control) Stats(ctx context.Context) (ListenerStats, error) {
	var st ListenerStats
	err := c.call(ctx, MethodStats, nil, &st)
	return st, err
}

// BufferSnapshot returns a copy of the listener's ring buffer, oldest
// record first. The copy is taken atomically; mutating it affects nothing.
func (c *Control) BufferSnapshot(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := c.call(ctx, MethodBufferSnapshot, nil, &recs)
	return recs, err
}

// BufferClear empties the ring buffer. Clearing an empty buffer succeeds.
func (c *Control) BufferClear(ctx context.Context) error {
	return c.call(ctx, MethodBufferClear, nil, nil)
}

// BufferResize changes the ring capacity. Shrinking keeps the newest
// records. A size of zero or less is rejected and the buffer is untouched.
func (c *Control) BufferResize(ctx context.Context, size int) error {
	return c.call(ctx, MethodBufferResize, resizeParams{Size: size}, nil)
}

type resizeParams struct {
	Size int `json:"size"`
}

// StopListener sends the shutdown sentinel and waits for the listener to
// finish draining, which it signals by closing every connection. Returns
// ErrShutdownTimeout when ctx expires first; the listener may still be
// draining at that point.
func (c *Control) StopListener(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := c.conn.Write([]byte(`{"type":"stop"}` + "\n")); err != nil {
		return fmt.Errorf("logfan: write stop: %w", err)
	}

	_, err := c.r.ReadBytes('\n')
	switch {
	case err == nil:
		// The listener never writes unsolicited lines; treat any data as
		// the connection winding down.
		return nil
	case errors.Is(err, io.EOF):
		return nil
	default:
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return ErrShutdownTimeout
		}
		// Reset and close races also mean the listener went away.
		return nil
	}
}

// Close releases the control connection.
func (c *Control) Close() error { return c.conn.Close() }

func (c *Control) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	env := Envelope{Type: FrameCall, ID: c.next, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("logfan: marshal params: %w", err)
		}
		env.Params = raw
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return err
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("logfan: marshal call: %w", err)
	}
	data = append(data, '\n')
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("logfan: write call: %w", err)
	}

	for {
		line, err := c.r.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("logfan: read reply: %w", err)
		}
		var rep Reply
		if err := json.Unmarshal(line, &rep); err != nil {
			return fmt.Errorf("logfan: decode reply: %w", err)
		}
		if rep.ID != env.ID {
			// A late reply to a call that timed out.
			continue
		}
		if rep.Error != nil {
			return rep.Error
		}
		if result != nil && rep.Result != nil {
			if err := json.Unmarshal(rep.Result, result); err != nil {
				return fmt.Errorf("logfan: decode result: %w", err)
			}
		}
		return nil
	}
}
