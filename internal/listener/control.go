package listener

import (
	"encoding/json"
	"fmt"
	"log"
	"net"

	"github.com/valyala/fastjson"

	"github.com/hansrobothans/logfan"
)

// handleCall answers one control frame on the connection it arrived on.
// Replies are written directly; record traffic on other connections is not
// held up.
func (l *Listener) handleCall(conn net.Conn, v *fastjson.Value) {
	if id := v.Get("id"); id == nil || id.Type() != fastjson.TypeNumber {
		l.writeReply(conn, logfan.Reply{
			Error: &logfan.CallError{Code: logfan.CodeParse, Message: "call frame has no numeric id"},
		})
		return
	}
	rep := logfan.Reply{ID: v.GetInt64("id")}

	var result any
	switch method := string(v.GetStringBytes("method")); method {
	case logfan.MethodPing:
		result = "pong"
	case logfan.MethodStats:
		result = l.Stats()
	case logfan.MethodBufferSnapshot:
		result = l.ring.Snapshot()
	case logfan.MethodBufferClear:
		l.ring.Clear()
		result = true
	case logfan.MethodBufferResize:
		if err := l.ring.Resize(v.GetInt("params", "size")); err != nil {
			rep.Error = &logfan.CallError{Code: logfan.CodeInvalidParams, Message: err.Error()}
		} else {
			result = true
		}
	default:
		rep.Error = &logfan.CallError{Code: logfan.CodeMethodUnknown, Message: fmt.Sprintf("unknown method %q", method)}
	}

	if rep.Error == nil {
		data, err := json.Marshal(result)
		if err != nil {
			rep.Error = &logfan.CallError{Code: logfan.CodeInternal, Message: err.Error()}
		} else {
			rep.Result = data
		}
	}
	l.writeReply(conn, rep)
}

func (l *Listener) writeReply(conn net.Conn, rep logfan.Reply) {
	out, err := json.Marshal(rep)
	if err != nil {
		log.Printf("listener: encode reply: %v", err)
		return
	}
	if _, err := conn.Write(append(out, '\n')); err != nil {
		log.Printf("listener: write reply: %v", err)
	}
}
