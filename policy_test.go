package logfan

import (
	"testing"
	"time"
)

func TestRotationNext(t *testing.T) {
	now := time.Date(2026, 8, 22, 10, 30, 0, 0, time.Local)

	if got := (Rotation{}).Next(now); !got.IsZero() {
		t.Errorf("zero rotation Next = %v, want zero", got)
	}
	if got := (Rotation{MaxBytes: 100}).Next(now); !got.IsZero() {
		t.Errorf("size-only rotation Next = %v, want zero", got)
	}

	if got := (Rotation{Every: time.Hour}).Next(now); !got.Equal(now.Add(time.Hour)) {
		t.Errorf("interval Next = %v", got)
	}

	daily := Rotation{Daily: &Clock{Hour: 12, Minute: 0}}
	if got := daily.Next(now); got.Hour() != 12 || got.Day() != now.Day() {
		t.Errorf("upcoming daily Next = %v", got)
	}
	afternoon := time.Date(2026, 8, 22, 13, 0, 0, 0, time.Local)
	if got := daily.Next(afternoon); got.Day() != afternoon.AddDate(0, 0, 1).Day() {
		t.Errorf("passed daily Next = %v, want tomorrow", got)
	}

	// Whichever deadline comes first wins.
	both := Rotation{Every: time.Hour, Daily: &Clock{Hour: 10, Minute: 45}}
	if got := both.Next(now); !got.Equal(time.Date(2026, 8, 22, 10, 45, 0, 0, time.Local)) {
		t.Errorf("combined Next = %v", got)
	}
}
