package logfan

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	defaultQueueDepth  = 8192
	defaultFlushEvery  = 100 * time.Millisecond
	defaultDialTimeout = 2 * time.Second
)

// Queue is the producer end of the record queue: a connection to the
// listener socket plus a buffered channel drained by one writer goroutine.
// Safe for concurrent use; within one Queue, records reach the listener in
// Send order.
type Queue struct {
	info       ProducerInfo
	conn       net.Conn
	ch         chan *Record
	flushReq   chan chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup
	drop       bool
	flushEvery time.Duration

	failed  atomic.Bool
	dropped atomic.Int64

	closeOnce sync.Once
	closeErr  error
}

// QueueOption adjusts Dial behavior.
type QueueOption func(*queueConfig)

type queueConfig struct {
	depth      int
	dropOnFull bool
	flushEvery time.Duration
	name       string
}

// WithDepth sets the producer-side channel capacity.
func WithDepth(n int) QueueOption {
	return func(c *queueConfig) {
		if n > 0 {
			c.depth = n
		}
	}
}

// WithDropOnFull makes Send drop (and count) instead of blocking when the
// local buffer is full, for callers that must never stall on logging.
func WithDropOnFull() QueueOption {
	return func(c *queueConfig) { c.dropOnFull = true }
}

// WithProducerName labels this producer in the listener's stats. Defaults
// to the executable name.
func WithProducerName(name string) QueueOption {
	return func(c *queueConfig) { c.name = name }
}

// Dial connects to a listener socket and starts the writer goroutine. The
// first frame on the wire introduces this producer to the listener.
func Dial(socketPath string, opts ...QueueOption) (*Queue, error) {
	cfg := queueConfig{depth: defaultQueueDepth, flushEvery: defaultFlushEvery}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.name == "" {
		cfg.name = filepath.Base(os.Args[0])
	}

	conn, err := net.DialTimeout("unix", socketPath, defaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("logfan: dial %s: %w", socketPath, err)
	}

	q := &Queue{
		info: ProducerInfo{
			ID:        uuid.New().String(),
			PID:       os.Getpid(),
			Name:      cfg.name,
			StartedAt: time.Now(),
		},
		conn:       conn,
		ch:         make(chan *Record, cfg.depth),
		flushReq:   make(chan chan struct{}),
		done:       make(chan struct{}),
		drop:       cfg.dropOnFull,
		flushEvery: cfg.flushEvery,
	}

	q.wg.Add(1)
	go q.writeLoop()
	return q, nil
}

// Producer returns the identity announced to the listener.
func (q *Queue) Producer() ProducerInfo { return q.info }

// Send queues one record for delivery. It blocks only while the local
// buffer is full, unless the queue was opened with WithDropOnFull.
// Sending nil returns ErrNilRecord; use Stop to shut the listener down.
func (q *Queue) Send(rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	if q.failed.Load() {
		return ErrQueueUnavailable
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	if q.drop {
		select {
		case q.ch <- rec:
			return nil
		case <-q.done:
			return ErrQueueClosed
		default:
			q.dropped.Add(1)
			return nil
		}
	}
	select {
	case q.ch <- rec:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Stop queues the shutdown sentinel behind every record already sent on
// this queue. The listener finishes those records, then drains, closes its
// sinks and exits. Use Control.StopListener or Handle.Stop to also wait for
// the drain.
func (q *Queue) Stop() error {
	if q.failed.Load() {
		return ErrQueueUnavailable
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- nil:
		return nil
	case <-q.done:
		return ErrQueueClosed
	}
}

// Flush blocks until every record sent before the call has been handed to
// the operating system.
func (q *Queue) Flush(ctx context.Context) error {
	if q.failed.Load() {
		return ErrQueueUnavailable
	}
	ack := make(chan struct{})
	select {
	case q.flushReq <- ack:
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		if q.failed.Load() {
			return ErrQueueUnavailable
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped reports how many records were discarded locally: WithDropOnFull
// backpressure, records past MaxFrameBytes, or sends after the listener
// became unreachable.
func (q *Queue) Dropped() int64 { return q.dropped.Load() }

// Close flushes pending records and closes the connection. The queue
// cannot be reused.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		q.wg.Wait()
		q.closeErr = q.conn.Close()
		if q.closeErr == nil && q.failed.Load() {
			q.closeErr = ErrQueueUnavailable
		}
	})
	return q.closeErr
}

func (q *Queue) writeLoop() {
	defer q.wg.Done()

	w := bufio.NewWriter(q.conn)

	writeFrame := func(env Envelope) {
		data, err := json.Marshal(env)
		if err != nil {
			q.fail(err)
			return
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			q.fail(err)
		}
	}
	write := func(rec *Record) {
		if q.failed.Load() {
			if rec != nil {
				q.dropped.Add(1)
			}
			return
		}
		if rec == nil {
			writeFrame(Envelope{Type: FrameStop})
			return
		}
		env := Envelope{Type: FrameRecord, Record: rec}
		data, err := json.Marshal(env)
		if err != nil {
			q.fail(err)
			return
		}
		if len(data)+1 > MaxFrameBytes {
			q.dropped.Add(1)
			fmt.Fprintf(os.Stderr, "logfan: %d byte record exceeds the frame limit, dropped\n", len(data))
			return
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			q.fail(err)
		}
	}
	flush := func() {
		if q.failed.Load() {
			return
		}
		if err := w.Flush(); err != nil {
			q.fail(err)
		}
	}
	drain := func() {
		for {
			select {
			case rec := <-q.ch:
				write(rec)
			default:
				return
			}
		}
	}

	writeFrame(Envelope{Type: FrameHello, Producer: &q.info})

	ticker := time.NewTicker(q.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case rec := <-q.ch:
			write(rec)
		case <-ticker.C:
			flush()
		case ack := <-q.flushReq:
			drain()
			flush()
			close(ack)
		case <-q.done:
			drain()
			flush()
			return
		}
	}
}

// fail marks the queue dead. Later sends return ErrQueueUnavailable and one
// notice goes to stderr, so the failure is visible without ever crashing
// the application that logs.
func (q *Queue) fail(err error) {
	if q.failed.CompareAndSwap(false, true) {
		fmt.Fprintf(os.Stderr, "logfan: listener unreachable, dropping records: %v\n", err)
	}
}
