package checkpoint

import (
	"errors"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	snap := Snapshot{
		CycleID:            "20251101",
		CursorTierDivision: "GOLD/II",
		ProcessedPlayers:   []string{"p1", "p2"},
		PendingMatches:     []string{"NA1_1"},
		MatchesCollected:   42,
	}
	if err := store.Save(snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load("20251101")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CursorTierDivision != snap.CursorTierDivision || got.MatchesCollected != snap.MatchesCollected {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, snap)
	}
}

func TestLoad_NoCheckpoint(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	_, err = store.Load("20251101")
	if !errors.Is(err, ErrNoCheckpoint) {
		t.Fatalf("expected ErrNoCheckpoint, got %v", err)
	}
}

func TestDelete_OnCompletion(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store.Save(Snapshot{CycleID: "20251101"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !store.Exists("20251101") {
		t.Fatal("expected checkpoint to exist before delete")
	}
	if err := store.Delete("20251101"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Exists("20251101") {
		t.Fatal("expected checkpoint to be gone after delete")
	}
	if err := store.Delete("20251101"); err != nil {
		t.Fatalf("Delete of already-deleted checkpoint should be a no-op: %v", err)
	}
}
