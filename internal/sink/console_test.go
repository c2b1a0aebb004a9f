package sink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hansrobothans/logfan"
)

func TestConsoleWrite(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, "never")

	if err := c.Write(rec(logfan.LevelInfo, "hello there")); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "hello there") || !strings.Contains(out, "INFO") {
		t.Errorf("output = %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("line should end with a newline")
	}
}

func TestConsoleColorModes(t *testing.T) {
	var buf bytes.Buffer
	if NewConsole(&buf, "always").color != true {
		t.Error("always should force color on")
	}
	if NewConsole(&buf, "never").color != false {
		t.Error("never should force color off")
	}
	// auto on a plain writer: not a terminal.
	if NewConsole(&buf, "auto").color != false {
		t.Error("auto should disable color off-terminal")
	}
}

func TestConsoleName(t *testing.T) {
	if got := NewConsole(&bytes.Buffer{}, "never").Name(); got != "console" {
		t.Errorf("Name() = %q", got)
	}
}
