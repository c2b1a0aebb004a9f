package logfan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Record is one log entry as it travels from a producer to the listener.
// The JSON field names are the wire format and must not change.
type Record struct {
	Time     time.Time      `json:"time"`
	Level    Level          `json:"level"`
	Message  string         `json:"message"`
	Process  int            `json:"process"`
	Thread   string         `json:"thread,omitempty"`
	Logger   string         `json:"logger,omitempty"`
	File     string         `json:"file,omitempty"`
	Line     int            `json:"line,omitempty"`
	Function string         `json:"function,omitempty"`
	Err      string         `json:"error,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
}

// FormatText renders the record as a single display line:
//
//	2026-08-22 15:04:05.000 | INFO     | P4242/Tgoroutine | main.go:41 | web.run - listening
//
// Empty origin segments collapse. Error text, when present, follows on its
// own line the way tracebacks usually do.
func (r *Record) FormatText() string {
	var b strings.Builder
	b.WriteString(r.Time.Format("2006-01-02 15:04:05.000"))
	fmt.Fprintf(&b, " | %-8s | P%d", r.Level, r.Process)
	if r.Thread != "" {
		fmt.Fprintf(&b, "/T%s", r.Thread)
	}
	if r.File != "" {
		fmt.Fprintf(&b, " | %s:%d", r.File, r.Line)
	}
	b.WriteString(" | ")
	if name := r.origin(); name != "" {
		b.WriteString(name)
		b.WriteString(" - ")
	}
	b.WriteString(r.Message)
	if len(r.Attrs) > 0 {
		keys := make([]string, 0, len(r.Attrs))
		for k := range r.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, r.Attrs[k])
		}
	}
	if r.Err != "" {
		b.WriteString("\n")
		b.WriteString(r.Err)
	}
	return b.String()
}

func (r *Record) origin() string {
	switch {
	case r.Logger != "" && r.Function != "":
		return r.Logger + "." + r.Function
	case r.Logger != "":
		return r.Logger
	default:
		return r.Function
	}
}
