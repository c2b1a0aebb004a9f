package sink

import (
	"strconv"
	"testing"

	"github.com/hansrobothans/logfan"
)

func fillRing(r *Ring, n int) {
	for i := 0; i < n; i++ {
		r.Write(rec(logfan.LevelInfo, strconv.Itoa(i)))
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	fillRing(r, 5)

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	snap := r.Snapshot()
	for i, want := range []string{"2", "3", "4"} {
		if snap[i].Message != want {
			t.Errorf("snapshot[%d] = %q, want %q", i, snap[i].Message, want)
		}
	}
}

func TestRingSnapshotIsolated(t *testing.T) {
	r := NewRing(3)
	fillRing(r, 2)

	snap := r.Snapshot()
	snap[0].Message = "mutated"

	if r.Snapshot()[0].Message != "0" {
		t.Error("mutating a snapshot leaked into the ring")
	}
}

func TestRingClear(t *testing.T) {
	r := NewRing(3)
	fillRing(r, 3)
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d", r.Len())
	}
	// Clearing again is fine.
	r.Clear()

	fillRing(r, 1)
	if r.Len() != 1 {
		t.Errorf("ring unusable after Clear: Len() = %d", r.Len())
	}
}

func TestRingResize(t *testing.T) {
	r := NewRing(5)
	fillRing(r, 5)

	if err := r.Resize(2); err != nil {
		t.Fatal(err)
	}
	if r.Cap() != 2 || r.Len() != 2 {
		t.Fatalf("after shrink: len %d cap %d", r.Len(), r.Cap())
	}
	snap := r.Snapshot()
	if snap[0].Message != "3" || snap[1].Message != "4" {
		t.Errorf("shrink should keep the newest: %q %q", snap[0].Message, snap[1].Message)
	}

	if err := r.Resize(10); err != nil {
		t.Fatal(err)
	}
	fillRing(r, 5)
	if r.Len() != 7 {
		t.Errorf("after grow: Len() = %d, want 7", r.Len())
	}

	if err := r.Resize(0); err == nil {
		t.Error("Resize(0) should fail")
	}
	if err := r.Resize(-1); err == nil {
		t.Error("Resize(-1) should fail")
	}
	if r.Cap() != 10 {
		t.Errorf("failed resize changed capacity to %d", r.Cap())
	}
}

func TestRingDefaultCapacity(t *testing.T) {
	if got := NewRing(0).Cap(); got != DefaultRingCapacity {
		t.Errorf("Cap() = %d, want %d", got, DefaultRingCapacity)
	}
}
