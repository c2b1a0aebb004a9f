package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hansrobothans/logfan"
)

var sizeUnits = map[string]int64{
	"":   1,
	"b":  1,
	"kb": 1 << 10,
	"mb": 1 << 20,
	"gb": 1 << 30,
}

var durationUnits = map[string]time.Duration{
	"s":       time.Second,
	"sec":     time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"min":     time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       24 * time.Hour,
	"day":     24 * time.Hour,
	"days":    24 * time.Hour,
	"w":       7 * 24 * time.Hour,
	"week":    7 * 24 * time.Hour,
	"weeks":   7 * 24 * time.Hour,
}

func splitNumber(s string) (num, rest string) {
	cut := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if cut < 0 {
		return s, ""
	}
	return s[:cut], strings.TrimSpace(s[cut:])
}

// ParseSize converts strings like "50 MB", "512kb" or "1073741824" to a
// byte count.
func ParseSize(s string) (int64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("empty size")
	}
	num, unit := splitNumber(t)
	mult, ok := sizeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown size unit %q", unit)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("bad size %q", s)
	}
	return int64(f * float64(mult)), nil
}

// ParseDuration accepts everything time.ParseDuration does plus day and
// week units and spaced forms: "7d", "1 week", "12 hours".
func ParseDuration(s string) (time.Duration, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(t); err == nil {
		return d, nil
	}
	num, unit := splitNumber(t)
	mult, ok := durationUnits[unit]
	if !ok {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("bad duration %q", s)
	}
	return time.Duration(f * float64(mult)), nil
}

func parseClock(s string) (*logfan.Clock, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("bad time of day %q", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return nil, fmt.Errorf("bad time of day %q", s)
	}
	return &logfan.Clock{Hour: h, Minute: m}, nil
}

// ParseRotation reads a rotation policy from its config string: a size
// ("50 MB"), an interval ("6h", "1 week") or a daily time of day ("12:00").
func ParseRotation(s string) (logfan.Rotation, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" || t == "none" {
		return logfan.Rotation{}, nil
	}
	if strings.Contains(t, ":") {
		c, err := parseClock(t)
		if err != nil {
			return logfan.Rotation{}, err
		}
		return logfan.Rotation{Daily: c}, nil
	}
	if d, err := ParseDuration(t); err == nil {
		return logfan.Rotation{Every: d}, nil
	}
	if n, err := ParseSize(t); err == nil {
		return logfan.Rotation{MaxBytes: n}, nil
	}
	return logfan.Rotation{}, fmt.Errorf("bad rotation %q", s)
}

// ParseRetention reads a retention policy: an archive count ("10") or an
// age ("30 days").
func ParseRetention(s string) (logfan.Retention, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if t == "" || t == "none" {
		return logfan.Retention{}, nil
	}
	if n, err := strconv.Atoi(t); err == nil {
		if n < 0 {
			return logfan.Retention{}, fmt.Errorf("negative retention count %q", s)
		}
		return logfan.Retention{MaxCount: n}, nil
	}
	if d, err := ParseDuration(t); err == nil {
		return logfan.Retention{MaxAge: d}, nil
	}
	return logfan.Retention{}, fmt.Errorf("bad retention %q", s)
}

// ParseCompression normalizes a compression name.
func ParseCompression(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return logfan.CompressNone, nil
	case "gz", "gzip":
		return logfan.CompressGzip, nil
	case "zst", "zstd":
		return logfan.CompressZstd, nil
	}
	return "", fmt.Errorf("unknown compression %q", s)
}
