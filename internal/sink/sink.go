// Package sink holds the listener's log destinations and the fan-out set
// that routes records to them by severity threshold.
package sink

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/hansrobothans/logfan"
)

// Sink is one log destination. Writes arrive from the listener's single
// consumer goroutine; a sink only needs its own locking when it is also
// read from elsewhere, the way the ring buffer is.
type Sink interface {
	Name() string
	Write(rec *logfan.Record) error
	Flush() error
	Close() error
}

// Entry pairs a sink with its severity threshold.
type Entry struct {
	Sink      Sink
	Threshold logfan.Level
}

// Set fans one record out to every sink whose threshold passes. A failing
// sink is skipped for that record and the failure is written to the
// remaining sinks, so one bad destination cannot silence the others.
type Set struct {
	entries []Entry
	onWrite func(sink string)
	onError func(sink string, err error)
}

func NewSet(entries []Entry) *Set {
	return &Set{entries: entries}
}

// OnWrite registers a hook invoked once per record a sink accepts.
func (s *Set) OnWrite(fn func(sink string)) { s.onWrite = fn }

// OnError registers a hook invoked once per failed sink write.
func (s *Set) OnError(fn func(sink string, err error)) { s.onError = fn }

// Names lists sink names in registration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Sink.Name()
	}
	return names
}

// Write delivers rec to every passing sink in registration order and
// returns how many accepted it.
func (s *Set) Write(rec *logfan.Record) int {
	delivered := 0
	var failed []int
	var reports []*logfan.Record
	for i, e := range s.entries {
		if rec.Level < e.Threshold {
			continue
		}
		if err := e.Sink.Write(rec); err != nil {
			if s.onError != nil {
				s.onError(e.Sink.Name(), err)
			}
			failed = append(failed, i)
			reports = append(reports, failureRecord(e.Sink.Name(), err))
			continue
		}
		if s.onWrite != nil {
			s.onWrite(e.Sink.Name())
		}
		delivered++
	}

	// Tell the healthy sinks which destination just lost a record.
	for _, fr := range reports {
		for i, e := range s.entries {
			if fr.Level < e.Threshold || slices.Contains(failed, i) {
				continue
			}
			_ = e.Sink.Write(fr)
		}
	}
	return delivered
}

// Flush flushes every sink, keeping going past failures.
func (s *Set) Flush() error {
	var errs []error
	for _, e := range s.entries {
		if err := e.Sink.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", e.Sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, keeping going past failures.
func (s *Set) Close() error {
	var errs []error
	for _, e := range s.entries {
		if err := e.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.Sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func failureRecord(name string, err error) *logfan.Record {
	return &logfan.Record{
		Time:    time.Now(),
		Level:   logfan.LevelError,
		Message: fmt.Sprintf("sink %s write failed: %v", name, err),
		Process: os.Getpid(),
		Logger:  "logfan",
	}
}
