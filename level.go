package logfan

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Level is the severity of a record. The numeric values are stable across
// versions: they appear on the wire and in config files, and threshold
// checks compare them directly.
type Level int

const (
	LevelTrace    Level = 5
	LevelDebug    Level = 10
	LevelInfo     Level = 20
	LevelSuccess  Level = 25
	LevelWarning  Level = 30
	LevelError    Level = 40
	LevelCritical Level = 50
)

// slog values for the severities slog has no name of its own for.
// Producers emit them with logger.Log(ctx, logfan.SlogSuccess, ...).
const (
	SlogTrace    slog.Level = slog.LevelDebug - 4
	SlogSuccess  slog.Level = slog.LevelInfo + 2
	SlogCritical slog.Level = slog.LevelError + 4
)

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelSuccess:
		return "SUCCESS"
	case LevelWarning:
		return "WARNING"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel resolves a level name or a numeric string. Common aliases are
// accepted: "warn" for WARNING, "fatal" for CRITICAL.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "success":
		return LevelSuccess, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	case "critical", "fatal":
		return LevelCritical, nil
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return Level(n), nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// LevelFromSlog maps the slog scale onto ours. The mapping is monotonic, so
// the relative ordering of slog levels survives the translation.
func LevelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelDebug:
		return LevelTrace
	case l < slog.LevelInfo:
		return LevelDebug
	case l < SlogSuccess:
		return LevelInfo
	case l < slog.LevelWarn:
		return LevelSuccess
	case l < slog.LevelError:
		return LevelWarning
	case l < SlogCritical:
		return LevelError
	default:
		return LevelCritical
	}
}

// Slog maps our scale back onto slog's.
func (l Level) Slog() slog.Level {
	switch {
	case l <= LevelTrace:
		return SlogTrace
	case l <= LevelDebug:
		return slog.LevelDebug
	case l <= LevelInfo:
		return slog.LevelInfo
	case l <= LevelSuccess:
		return SlogSuccess
	case l <= LevelWarning:
		return slog.LevelWarn
	case l <= LevelError:
		return slog.LevelError
	default:
		return SlogCritical
	}
}
