package window

import (
	"testing"
	"time"
)

func TestForCycle_Daily(t *testing.T) {
	w, err := ForCycle("20251101", ModeDaily, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantStart := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) || !w.End.Equal(wantEnd) {
		t.Fatalf("window = [%v, %v), want [%v, %v)", w.Start, w.End, wantStart, wantEnd)
	}
}

func TestForCycle_Weekly(t *testing.T) {
	w, err := ForCycle("20251101", ModeWeekly, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.End.Sub(w.Start) != 7*24*time.Hour {
		t.Fatalf("weekly window span = %v, want 7 days", w.End.Sub(w.Start))
	}
}

func TestForCycle_Incremental_NoCheckpoint(t *testing.T) {
	w, err := ForCycle("20251101", ModeIncremental, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.End.Sub(w.Start) != 24*time.Hour {
		t.Fatalf("incremental window with no checkpoint span = %v, want 24h", w.End.Sub(w.Start))
	}
}

func TestForCycle_Incremental_FromCheckpoint(t *testing.T) {
	prevEnd := time.Date(2025, 10, 30, 12, 0, 0, 0, time.UTC)
	w, err := ForCycle("20251101", ModeIncremental, prevEnd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.Start.Equal(prevEnd) {
		t.Fatalf("incremental start = %v, want %v", w.Start, prevEnd)
	}
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2025, 11, 2, 0, 0, 0, 0, time.UTC)}
	inBounds := w.Start.UnixMilli()
	outOfBounds := w.End.UnixMilli()
	if !w.Contains(inBounds) {
		t.Error("expected window start (inclusive) to be contained")
	}
	if w.Contains(outOfBounds) {
		t.Error("expected window end (exclusive) to not be contained")
	}
}

func TestForCycle_UnrecognizedMode(t *testing.T) {
	if _, err := ForCycle("20251101", Mode("monthly"), time.Time{}); err == nil {
		t.Fatal("expected error for unrecognized mode")
	}
}
