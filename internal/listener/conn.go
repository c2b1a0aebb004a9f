package listener

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log"
	"net"
	"time"

	"github.com/valyala/fastjson"

	"github.com/hansrobothans/logfan"
)

const readBufSize = 64 * 1024

var parsers fastjson.ParserPool

// serveConn reads newline-delimited frames from one producer until the
// connection closes or shutdown begins. Record frames are forwarded to the
// consume loop in arrival order; a malformed line drops that line only, and
// a line past logfan.MaxFrameBytes is skipped up to its newline.
func (l *Listener) serveConn(conn net.Conn) {
	defer l.wg.Done()
	defer l.forgetConn(conn)
	defer conn.Close()

	var producerID string
	defer func() {
		if producerID != "" {
			l.producers.remove(producerID)
		}
	}()

	p := parsers.Get()
	defer parsers.Put(p)

	r := bufio.NewReaderSize(conn, readBufSize)
	var frame []byte
	skipping := false
	for {
		chunk, err := r.ReadSlice('\n')
		full := errors.Is(err, bufio.ErrBufferFull)
		switch {
		case skipping:
			if err == nil {
				skipping = false
			}
		case full:
			frame = append(frame, chunk...)
			if len(frame) > logfan.MaxFrameBytes {
				l.stats.dropped.Add(1)
				log.Printf("listener: frame exceeds %d bytes, dropped", logfan.MaxFrameBytes)
				skipping = true
				frame = frame[:0]
			}
		case err == nil, errors.Is(err, io.EOF):
			frame = append(frame, chunk...)
			if len(frame) > logfan.MaxFrameBytes {
				l.stats.dropped.Add(1)
				log.Printf("listener: frame exceeds %d bytes, dropped", logfan.MaxFrameBytes)
			} else {
				line := bytes.TrimRight(frame, "\r\n")
				if len(line) > 0 && !l.handleFrame(conn, p, line, &producerID) {
					return
				}
			}
			frame = frame[:0]
		}
		if err != nil && !full {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Printf("listener: read: %v", err)
			}
			return
		}
	}
}

// handleFrame dispatches one complete line. It reports false once the
// connection is done, on a stop frame or during shutdown.
func (l *Listener) handleFrame(conn net.Conn, p *fastjson.Parser, line []byte, producerID *string) bool {
	v, err := p.ParseBytes(line)
	if err != nil {
		l.stats.dropped.Add(1)
		log.Printf("listener: bad frame: %v", err)
		return true
	}
	switch string(v.GetStringBytes("type")) {
	case logfan.FrameRecord:
		rec := decodeRecord(v.Get("record"))
		if rec == nil {
			l.stats.dropped.Add(1)
			return true
		}
		select {
		case l.records <- rec:
		case <-l.quit:
			return false
		}
	case logfan.FrameHello:
		if info := decodeProducer(v.Get("producer")); info != nil {
			*producerID = info.ID
			l.producers.add(*info)
		}
	case logfan.FrameStop:
		select {
		case l.records <- nil:
		case <-l.quit:
		}
		return false
	case logfan.FrameCall:
		l.handleCall(conn, v)
	default:
		l.stats.dropped.Add(1)
		log.Printf("listener: unknown frame type %q", v.GetStringBytes("type"))
	}
	return true
}

func decodeRecord(v *fastjson.Value) *logfan.Record {
	if v == nil {
		return nil
	}
	rec := &logfan.Record{
		Level:    logfan.Level(v.GetInt("level")),
		Message:  string(v.GetStringBytes("message")),
		Process:  v.GetInt("process"),
		Thread:   string(v.GetStringBytes("thread")),
		Logger:   string(v.GetStringBytes("logger")),
		File:     string(v.GetStringBytes("file")),
		Line:     v.GetInt("line"),
		Function: string(v.GetStringBytes("function")),
		Err:      string(v.GetStringBytes("error")),
	}
	if ts := v.GetStringBytes("time"); len(ts) > 0 {
		if t, err := time.Parse(time.RFC3339Nano, string(ts)); err == nil {
			rec.Time = t
		}
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if obj := v.GetObject("attrs"); obj != nil {
		attrs := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			attrs[string(key)] = anyValue(val)
		})
		rec.Attrs = attrs
	}
	return rec
}

// anyValue converts a fastjson scalar to its Go equivalent. Nested arrays
// and objects stay as raw JSON text.
func anyValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeString:
		b, _ := v.StringBytes()
		return string(b)
	case fastjson.TypeNumber:
		f, _ := v.Float64()
		return f
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	}
	return v.String()
}

func decodeProducer(v *fastjson.Value) *logfan.ProducerInfo {
	if v == nil {
		return nil
	}
	id := string(v.GetStringBytes("id"))
	if id == "" {
		return nil
	}
	info := &logfan.ProducerInfo{
		ID:   id,
		PID:  v.GetInt("pid"),
		Name: string(v.GetStringBytes("name")),
	}
	if ts := v.GetStringBytes("started_at"); len(ts) > 0 {
		if t, err := time.Parse(time.RFC3339Nano, string(ts)); err == nil {
			info.StartedAt = t
		}
	}
	return info
}
