// Package checkpoint implements the Checkpoint Store: atomic
// write-then-rename persistence of collector progress so an interrupted
// cycle resumes exactly where it left off. Grounded on bronze-copier's
// internal/checkpoint/checkpoint.go (fileManager, atomic temp+rename save,
// ErrNoCheckpoint sentinel), generalized to this specification's Checkpoint
// snapshot shape (§3).
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
)

// ErrNoCheckpoint is returned by Load when no checkpoint exists for the
// given cycleId, signaling a fresh cycle start.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint for cycle")

// Snapshot is the serialized collector progress record, matching §3's
// Checkpoint data model exactly.
type Snapshot struct {
	CycleID            string                    `json:"cycleId"`
	CursorTierDivision string                    `json:"cursorTierDivision"`
	ProcessedPlayers   []string                  `json:"processedPlayerSet"`
	PendingMatches     []string                  `json:"pendingMatchQueue"`
	MatchesCollected   int                       `json:"matchesCollected"`
	WindowStart        time.Time                 `json:"windowStart"`
	WindowEnd          time.Time                 `json:"windowEnd"`
	ErrorSummary       tfterrors.Summary         `json:"errorAccount"`
	UpdatedAt          time.Time                 `json:"updatedAt"`
}

// Store persists and retrieves Snapshots keyed by cycleId, one file per
// cycle at <dir>/tft_collection_<cycleId>_checkpoint.json, matching the
// deterministic path layout of §6.
type Store struct {
	dir string
}

// NewStore constructs a Store rooted at dir, creating it if necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("checkpoint: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(cycleID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("tft_collection_%s_checkpoint.json", cycleID))
}

// Save atomically writes snapshot via a temp-file-then-rename, so a crash
// mid-write never leaves a corrupt checkpoint on disk.
func (s *Store) Save(snapshot Snapshot) error {
	snapshot.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("checkpoint: marshal: %w", err)
	}

	final := s.path(snapshot.CycleID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write temp file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("checkpoint: rename into place: %w", err)
	}
	return nil
}

// Load reads the checkpoint for cycleID, returning ErrNoCheckpoint if none
// exists.
func (s *Store) Load(cycleID string) (Snapshot, error) {
	data, err := os.ReadFile(s.path(cycleID))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, ErrNoCheckpoint
		}
		return Snapshot{}, fmt.Errorf("checkpoint: read: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: unmarshal: %w", err)
	}
	return snap, nil
}

// Delete removes the checkpoint for cycleID. Called on successful cycle
// completion; deleting a nonexistent checkpoint is not an error.
func (s *Store) Delete(cycleID string) error {
	err := os.Remove(s.path(cycleID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checkpoint: delete: %w", err)
	}
	return nil
}

// Exists reports whether a checkpoint file is present for cycleID, without
// reading or parsing it.
func (s *Store) Exists(cycleID string) bool {
	_, err := os.Stat(s.path(cycleID))
	return err == nil
}
