package logfan

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestCallSkipsStaleReply(t *testing.T) {
	path := testSocket(t)
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		br := bufio.NewReader(conn)

		readCall := func() (Envelope, bool) {
			line, err := br.ReadBytes('\n')
			if err != nil {
				return Envelope{}, false
			}
			var env Envelope
			if err := json.Unmarshal(line, &env); err != nil {
				t.Errorf("bad call %q: %v", line, err)
				return Envelope{}, false
			}
			return env, true
		}
		reply := func(id int64, result string) {
			data, err := json.Marshal(Reply{ID: id, Result: json.RawMessage(result)})
			if err != nil {
				t.Error(err)
				return
			}
			conn.Write(append(data, '\n'))
		}

		// Answer the first call only after the caller has given up on it.
		first, ok := readCall()
		if !ok {
			return
		}
		time.Sleep(300 * time.Millisecond)
		reply(first.ID, `"pong"`)

		second, ok := readCall()
		if !ok {
			return
		}
		reply(second.ID, `{"received": 7}`)
	}()

	ctl, err := DialControl(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ctl.Close()

	shortCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := ctl.Ping(shortCtx); err == nil {
		t.Fatal("ping against a silent listener should time out")
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel2()
	st, err := ctl.Stats(ctx)
	if err != nil {
		t.Fatalf("stats after a timed out call = %v", err)
	}
	if st.Received != 7 {
		t.Errorf("received = %d, want 7", st.Received)
	}
}
