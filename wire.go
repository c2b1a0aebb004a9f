package logfan

import (
	"encoding/json"
	"fmt"
	"time"
)

// Every line written to the listener socket is one JSON object carrying a
// "type" field with one of these tags.
const (
	FrameRecord = "record"
	FrameHello  = "hello"
	FrameStop   = "stop"
	FrameCall   = "call"
)

// MaxFrameBytes caps one encoded frame, newline included. Producers drop
// records that encode past the cap; the listener skips oversized lines and
// keeps the connection.
const MaxFrameBytes = 1024 * 1024

// Envelope is one wire frame. Exactly one payload field is set, matching
// Type. Producers marshal envelopes with encoding/json; the listener parses
// them with a pooled fastjson parser.
type Envelope struct {
	Type     string          `json:"type"`
	Record   *Record         `json:"record,omitempty"`
	Producer *ProducerInfo   `json:"producer,omitempty"`
	ID       int64           `json:"id,omitempty"`
	Method   string          `json:"method,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
}

// ProducerInfo identifies a connected producer. It is sent once per
// connection in the hello frame and surfaces in listener stats.
type ProducerInfo struct {
	ID        string    `json:"id"`
	PID       int       `json:"pid"`
	Name      string    `json:"name,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Reply is the listener's answer to a call frame, correlated by ID.
type Reply struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *CallError      `json:"error,omitempty"`
}

// CallError mirrors JSON-RPC error objects.
type CallError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CallError) Error() string {
	return fmt.Sprintf("logfan: call failed: %d %s", e.Code, e.Message)
}

// Call error codes, JSON-RPC flavored.
const (
	CodeParse         = -32700
	CodeMethodUnknown = -32601
	CodeInvalidParams = -32602
	CodeInternal      = -32603
)

// Control methods served by the listener.
const (
	MethodPing           = "ping"
	MethodStats          = "stats"
	MethodBufferSnapshot = "buffer_snapshot"
	MethodBufferClear    = "buffer_clear"
	MethodBufferResize   = "buffer_resize"
)

// ListenerStats is a point-in-time snapshot of listener counters, returned
// by the stats control call and the daemon's status endpoint.
type ListenerStats struct {
	State      string           `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	Received   int64            `json:"received"`
	Written    map[string]int64 `json:"written"`
	SinkErrors int64            `json:"sink_errors"`
	Dropped    int64            `json:"dropped"`
	BufferLen  int              `json:"buffer_len"`
	BufferCap  int              `json:"buffer_cap"`
	Producers  []ProducerInfo   `json:"producers,omitempty"`
}
