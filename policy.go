package logfan

import "time"

// Rotation describes when a file sink starts a new file. The zero value
// never rotates. Conditions combine: whichever trips first wins.
//
// Policies arrive here already parsed. Config strings like "50 MB" or
// "12:00" are converted exactly once, at startup, and rejected there when
// malformed.
type Rotation struct {
	// MaxBytes rotates before a write would push the file past this size.
	MaxBytes int64

	// Every rotates when this much time has passed since the file was
	// opened.
	Every time.Duration

	// Daily rotates at this wall-clock time each day.
	Daily *Clock
}

// Next returns the earliest clock-based rotation deadline after now, or the
// zero time when only size rotation (or none) is configured.
func (r Rotation) Next(now time.Time) time.Time {
	var next time.Time
	if r.Every > 0 {
		next = now.Add(r.Every)
	}
	if r.Daily != nil {
		d := time.Date(now.Year(), now.Month(), now.Day(), r.Daily.Hour, r.Daily.Minute, 0, 0, now.Location())
		if !d.After(now) {
			d = d.AddDate(0, 0, 1)
		}
		if next.IsZero() || d.Before(next) {
			next = d
		}
	}
	return next
}

// Clock is a time of day in the local timezone.
type Clock struct {
	Hour   int
	Minute int
}

// Retention describes which rotated archives a file sink keeps. The zero
// value keeps everything.
type Retention struct {
	// MaxAge deletes archives older than this.
	MaxAge time.Duration

	// MaxCount keeps at most this many archives, newest first.
	MaxCount int
}

// Compression names for rotated archives.
const (
	CompressNone = ""
	CompressGzip = "gzip"
	CompressZstd = "zstd"
)

// FileSpec configures one file sink in daemon config syntax. Policy fields
// take the same strings the config file does; they are parsed when the
// listener starts. StartProcess serializes these into the temporary config
// handed to logfand.
type FileSpec struct {
	Path     string `json:"path"`
	Level    string `json:"level,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Rotate   string `json:"rotate,omitempty"`
	Keep     string `json:"keep,omitempty"`
	Compress string `json:"compress,omitempty"`
}

// ConsoleSpec configures the listener-side console sink in daemon config
// syntax.
type ConsoleSpec struct {
	Enabled bool   `json:"enabled"`
	Level   string `json:"level,omitempty"`
	Color   string `json:"color,omitempty"`
}
