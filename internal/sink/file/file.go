// Package file implements the rotating file sink: size and wall-clock
// rotation, archive compression, and retention of old archives.
package file

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hansrobothans/logfan"
)

// archiveTimeFormat names rotated files. It sorts lexicographically in
// chronological order and carries milliseconds so rapid rotations stay
// distinct.
const archiveTimeFormat = "20060102-150405.000"

// Config for one rotating log file. Policies arrive already parsed; the
// string forms only exist at the config boundary.
type Config struct {
	Path        string
	Encoding    string // "text" (default) or "json"
	Rotation    logfan.Rotation
	Retention   logfan.Retention
	Compression string // logfan.CompressNone, CompressGzip or CompressZstd
}

// Sink writes records to a file, rotating, compressing and pruning
// archives per its policies. Writes arrive from one goroutine only.
type Sink struct {
	cfg  Config
	base string // path without extension
	ext  string

	f        *os.File
	w        *bufio.Writer
	size     int64
	rotateAt time.Time // zero when no clock rotation is configured
}

// New opens (or creates) the file and prunes archives left over from
// previous runs.
func New(cfg Config) (*Sink, error) {
	if cfg.Path == "" {
		return nil, &logfan.ConfigError{Field: "path", Reason: "must not be empty"}
	}
	switch cfg.Encoding {
	case "":
		cfg.Encoding = "text"
	case "text", "json":
	default:
		return nil, &logfan.ConfigError{Field: "encoding", Reason: fmt.Sprintf("unknown encoding %q", cfg.Encoding)}
	}

	ext := filepath.Ext(cfg.Path)
	s := &Sink{
		cfg:  cfg,
		base: strings.TrimSuffix(cfg.Path, ext),
		ext:  ext,
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file sink: create dir: %w", err)
		}
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	s.prune()
	return s, nil
}

func (s *Sink) open() error {
	f, err := os.OpenFile(s.cfg.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("file sink: open %s: %w", s.cfg.Path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file sink: stat %s: %w", s.cfg.Path, err)
	}
	s.f = f
	s.w = bufio.NewWriter(f)
	s.size = fi.Size()
	s.rotateAt = s.cfg.Rotation.Next(time.Now())
	return nil
}

func (s *Sink) Name() string { return filepath.Base(s.cfg.Path) }

func (s *Sink) Write(rec *logfan.Record) error {
	line, err := s.encode(rec)
	if err != nil {
		return err
	}
	if s.needRotate(int64(len(line))) {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	n, err := s.w.Write(line)
	s.size += int64(n)
	if err != nil {
		return fmt.Errorf("file sink: write %s: %w", s.cfg.Path, err)
	}
	return nil
}

func (s *Sink) encode(rec *logfan.Record) ([]byte, error) {
	if s.cfg.Encoding == "json" {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("file sink: encode: %w", err)
		}
		return append(data, '\n'), nil
	}
	return append([]byte(rec.FormatText()), '\n'), nil
}

// needRotate checks the policies against an incoming write of n bytes. An
// empty file never rotates by size: a single oversized record would loop
// otherwise.
func (s *Sink) needRotate(n int64) bool {
	if s.cfg.Rotation.MaxBytes > 0 && s.size > 0 && s.size+n > s.cfg.Rotation.MaxBytes {
		return true
	}
	if !s.rotateAt.IsZero() && !time.Now().Before(s.rotateAt) {
		return true
	}
	return false
}

// rotate renames the live file to a timestamped archive, compresses it per
// config, applies retention and reopens a fresh file.
func (s *Sink) rotate() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("file sink: flush %s: %w", s.cfg.Path, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("file sink: close %s: %w", s.cfg.Path, err)
	}

	stamp := time.Now().Format(archiveTimeFormat)
	archived := fmt.Sprintf("%s.%s%s", s.base, stamp, s.ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(archived); os.IsNotExist(err) {
			break
		}
		archived = fmt.Sprintf("%s.%s-%d%s", s.base, stamp, i, s.ext)
	}
	if err := os.Rename(s.cfg.Path, archived); err != nil {
		return fmt.Errorf("file sink: archive %s: %w", s.cfg.Path, err)
	}

	if s.cfg.Compression != logfan.CompressNone {
		if _, err := compressArchive(archived, s.cfg.Compression); err != nil {
			// Keep the uncompressed archive rather than lose it.
			log.Printf("file sink: compress %s: %v", archived, err)
		}
	}

	s.prune()
	return s.open()
}

func (s *Sink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("file sink: flush %s: %w", s.cfg.Path, err)
	}
	return nil
}

func (s *Sink) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("file sink: flush %s: %w", s.cfg.Path, err)
	}
	if err := s.f.Close(); err != nil {
		return fmt.Errorf("file sink: close %s: %w", s.cfg.Path, err)
	}
	return nil
}
