package file

import (
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

type archive struct {
	path  string
	stamp time.Time
}

// prune deletes archives that fall outside the retention policy, oldest
// first. Errors are logged and skipped so one stubborn file cannot wedge
// rotation.
func (s *Sink) prune() {
	if s.cfg.Retention.MaxAge <= 0 && s.cfg.Retention.MaxCount <= 0 {
		return
	}
	archives := s.listArchives()
	if len(archives) == 0 {
		return
	}

	if s.cfg.Retention.MaxAge > 0 {
		cutoff := time.Now().Add(-s.cfg.Retention.MaxAge)
		kept := archives[:0]
		for _, a := range archives {
			if a.stamp.Before(cutoff) {
				removeArchive(a.path)
				continue
			}
			kept = append(kept, a)
		}
		archives = kept
	}

	if s.cfg.Retention.MaxCount > 0 && len(archives) > s.cfg.Retention.MaxCount {
		for _, a := range archives[:len(archives)-s.cfg.Retention.MaxCount] {
			removeArchive(a.path)
		}
	}
}

// listArchives returns this sink's rotated files sorted oldest first. The
// stamp is parsed from the file name, not taken from mtime, so compression
// after the fact does not reorder anything. Files that merely share the
// base name, such as another sink's archives in the same directory, are
// not listed and never pruned.
func (s *Sink) listArchives() []archive {
	dir := filepath.Dir(s.cfg.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("file sink: retention: read %s: %v", dir, err)
		return nil
	}

	prefix := filepath.Base(s.base) + "."
	active := filepath.Base(s.cfg.Path)
	var out []archive
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == active || !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		stamp, ok := parseStamp(rest)
		if !ok || !s.ownTail(rest[len(archiveTimeFormat):]) {
			continue
		}
		out = append(out, archive{path: filepath.Join(dir, name), stamp: stamp})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].stamp.Before(out[j].stamp) })
	return out
}

// parseStamp reads the leading archiveTimeFormat timestamp from an archive
// file name.
func parseStamp(rest string) (time.Time, bool) {
	if len(rest) < len(archiveTimeFormat) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(archiveTimeFormat, rest[:len(archiveTimeFormat)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ownTail reports whether what follows the timestamp is this sink's own
// archive shape: an optional -N collision counter, the sink's extension,
// and an optional compression suffix.
func (s *Sink) ownTail(tail string) bool {
	if strings.HasPrefix(tail, "-") {
		i := 1
		for i < len(tail) && tail[i] >= '0' && tail[i] <= '9' {
			i++
		}
		if i == 1 {
			return false
		}
		tail = tail[i:]
	}
	if !strings.HasPrefix(tail, s.ext) {
		return false
	}
	switch tail[len(s.ext):] {
	case "", ".gz", ".zst":
		return true
	}
	return false
}

func removeArchive(path string) {
	if err := os.Remove(path); err != nil {
		log.Printf("file sink: retention: %v", err)
	}
}
