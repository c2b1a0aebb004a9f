// Package listener implements the consumer side of the fan-in. The
// listener owns the unix socket, reads frames from every producer
// connection, and runs the single goroutine that writes to the sinks.
package listener

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hansrobothans/logfan"
	"github.com/hansrobothans/logfan/internal/sink"
)

// recordBacklog bounds how many records can sit between the connection
// readers and the sink writer before producers block.
const recordBacklog = 50000

// State of the listener lifecycle. Transitions only move forward:
// stopped -> starting -> running -> stopping -> stopped.
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Config struct {
	SocketPath string
	Sinks      []sink.Entry
	RingSize   int
}

type counters struct {
	startedAt  time.Time
	received   atomic.Int64
	dropped    atomic.Int64
	sinkErrors atomic.Int64
	written    map[string]*atomic.Int64
}

// Listener accepts producer connections and fans their records into the
// sink set. All sink writes happen on one goroutine; connection readers
// only parse and forward.
type Listener struct {
	socketPath string
	set        *sink.Set
	ring       *sink.Ring

	ln      net.Listener
	records chan *logfan.Record
	quit    chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	started  atomic.Bool
	state    atomic.Int32
	stopOnce sync.Once

	producers *producerTable
	stats     counters

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
}

// New builds a listener over the given sinks. The in-memory ring is always
// appended as the last sink so it sees every record the others saw.
func New(cfg Config) (*Listener, error) {
	if cfg.SocketPath == "" {
		return nil, &logfan.ConfigError{Field: "socket", Reason: "must not be empty"}
	}

	ring := sink.NewRing(cfg.RingSize)
	entries := make([]sink.Entry, 0, len(cfg.Sinks)+1)
	entries = append(entries, cfg.Sinks...)
	entries = append(entries, sink.Entry{Sink: ring, Threshold: logfan.LevelTrace})

	set := sink.NewSet(entries)
	names := set.Names()
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			return nil, &logfan.ConfigError{Field: "sinks", Reason: fmt.Sprintf("duplicate sink %q", name)}
		}
		seen[name] = struct{}{}
	}

	l := &Listener{
		socketPath: cfg.SocketPath,
		set:        set,
		ring:       ring,
		records:    make(chan *logfan.Record, recordBacklog),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		producers:  newProducerTable(),
		conns:      make(map[net.Conn]struct{}),
	}
	l.stats.written = make(map[string]*atomic.Int64, len(names))
	for _, name := range names {
		l.stats.written[name] = new(atomic.Int64)
	}
	set.OnWrite(func(name string) { l.stats.written[name].Add(1) })
	set.OnError(func(name string, err error) {
		l.stats.sinkErrors.Add(1)
		log.Printf("listener: sink %s: %v", name, err)
	})
	return l, nil
}

// Start binds the socket and launches the accept and consume loops. A
// listener is single use; starting twice returns ErrAlreadyStarted. A
// failed bind leaves the listener stopped, so Start may be retried.
func (l *Listener) Start() error {
	if !l.started.CompareAndSwap(false, true) {
		return logfan.ErrAlreadyStarted
	}
	l.state.Store(int32(StateStarting))
	if err := l.bind(); err != nil {
		l.state.Store(int32(StateStopped))
		l.started.Store(false)
		return err
	}
	l.stats.startedAt = time.Now()
	l.wg.Add(1)
	go l.acceptLoop()
	go l.consumeLoop()
	l.state.Store(int32(StateRunning))
	log.Printf("listener: accepting producers on %s", l.socketPath)
	return nil
}

// bind claims the socket path. A leftover socket file from a crashed
// listener is dialed first: if nothing answers it is removed, if something
// does the path is genuinely taken.
func (l *Listener) bind() error {
	if dir := filepath.Dir(l.socketPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("listener: create socket dir: %w", err)
		}
	}
	if _, err := os.Stat(l.socketPath); err == nil {
		conn, err := net.DialTimeout("unix", l.socketPath, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return &logfan.ConfigError{Field: "socket", Reason: fmt.Sprintf("%s already in use", l.socketPath)}
		}
		if err := os.Remove(l.socketPath); err != nil {
			return fmt.Errorf("listener: remove stale socket: %w", err)
		}
		log.Printf("listener: removed stale socket %s", l.socketPath)
	}
	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("listener: bind %s: %w", l.socketPath, err)
	}
	l.ln = ln
	return nil
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("listener: accept: %v", err)
			continue
		}
		l.trackConn(conn)
		l.wg.Add(1)
		go l.serveConn(conn)
	}
}

// consumeLoop is the sole writer to the sinks. It runs until the stop
// sentinel arrives, which by channel order means every record queued
// before the stop has been written out.
func (l *Listener) consumeLoop() {
	for rec := range l.records {
		if rec == nil {
			break
		}
		l.stats.received.Add(1)
		l.set.Write(rec)
	}
	l.teardown()
	close(l.done)
}

func (l *Listener) teardown() {
	l.state.Store(int32(StateStopping))
	log.Printf("listener: draining and stopping")
	close(l.quit)
	l.ln.Close()
	l.closeConns()
	l.wg.Wait()

	// Readers are gone. Anything still queued arrived after the stop
	// sentinel and is dropped.
drain:
	for {
		select {
		case rec := <-l.records:
			if rec != nil {
				l.stats.dropped.Add(1)
			}
		default:
			break drain
		}
	}

	if err := l.set.Close(); err != nil {
		log.Printf("listener: close sinks: %v", err)
	}
	os.Remove(l.socketPath)
	l.state.Store(int32(StateStopped))
	log.Printf("listener: stopped")
}

// Stop requests shutdown by queueing the stop sentinel behind whatever
// records are already waiting, then waits for teardown to finish. When the
// context expires first it returns ErrShutdownTimeout; the listener keeps
// draining in the background.
func (l *Listener) Stop(ctx context.Context) error {
	if !l.started.Load() {
		return nil
	}
	l.stopOnce.Do(func() {
		select {
		case l.records <- nil:
		case <-l.done:
		}
	})
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return logfan.ErrShutdownTimeout
	}
}

// Done is closed once the listener has fully stopped.
func (l *Listener) Done() <-chan struct{} { return l.done }

func (l *Listener) State() State { return State(l.state.Load()) }

// Ring exposes the in-memory buffer for in-process inspection.
func (l *Listener) Ring() *sink.Ring { return l.ring }

// Stats snapshots the listener counters.
func (l *Listener) Stats() logfan.ListenerStats {
	written := make(map[string]int64, len(l.stats.written))
	for name, n := range l.stats.written {
		written[name] = n.Load()
	}
	return logfan.ListenerStats{
		State:      l.State().String(),
		StartedAt:  l.stats.startedAt,
		Received:   l.stats.received.Load(),
		Written:    written,
		SinkErrors: l.stats.sinkErrors.Load(),
		Dropped:    l.stats.dropped.Load(),
		BufferLen:  l.ring.Len(),
		BufferCap:  l.ring.Cap(),
		Producers:  l.producers.list(),
	}
}

func (l *Listener) trackConn(c net.Conn) {
	l.connsMu.Lock()
	l.conns[c] = struct{}{}
	l.connsMu.Unlock()
}

func (l *Listener) forgetConn(c net.Conn) {
	l.connsMu.Lock()
	delete(l.conns, c)
	l.connsMu.Unlock()
}

func (l *Listener) closeConns() {
	l.connsMu.Lock()
	for c := range l.conns {
		c.Close()
	}
	l.connsMu.Unlock()
}
