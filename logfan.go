// Package logfan funnels log records from many producer processes into a
// single listener process that owns every log destination.
//
// Producers dial the listener's unix socket and install a slog handler that
// forwards records over it. The listener merges all connections into one
// ordered stream, applies per-sink severity thresholds, and is the only
// process that ever writes a sink. Ring buffer access, stats and shutdown
// travel over the same socket as control calls.
//
// The usual producer setup is two lines:
//
//	q, err := logfan.Dial(logfan.DefaultSocketPath())
//	logfan.Bind(q, logfan.HandlerOptions{})
//
// after which the standard slog calls deliver to the listener. The listener
// itself runs as the logfand daemon, started out of band or as a child
// process through StartProcess.
package logfan

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultSocketPath returns the conventional socket location for the
// current user. It prefers XDG_RUNTIME_DIR and falls back to the system
// temp directory with a uid suffix.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "logfan.sock")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("logfan-%d.sock", os.Getuid()))
}
