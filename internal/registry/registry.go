// Package registry implements the Identifier & Status Registry: a durable
// key/value store mapping match-ID to completion status and player-ID to
// last-seen cycle, with atomic claim/skip semantics. The bloom-filter
// pre-filter is grounded on the teacher's
// internal/collector/spider.go (bloom.NewWithEstimates over visitedMatches);
// the embedded file-backed store's atomic-write discipline is grounded on
// internal/checkpoint.Store and bronze-copier's fileManager.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
)

// Status is one of the fixed MatchStatus values from §3. Progress is
// monotone: once Complete, a row is frozen.
type Status string

const (
	StatusUnseen     Status = "UNSEEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusComplete   Status = "COMPLETE"
	StatusIncomplete Status = "INCOMPLETE"
	StatusFailed     Status = "FAILED"
)

// ClaimResult is the outcome of an atomic claim attempt.
type ClaimResult string

const (
	Claimed        ClaimResult = "CLAIMED"
	SkipComplete   ClaimResult = "SKIP_COMPLETE"
	SkipInFlight   ClaimResult = "SKIP_IN_FLIGHT"
)

// MatchRecord is one row of the identifiers table (§6).
type MatchRecord struct {
	MatchID           string             `json:"match_id"`
	Status            Status             `json:"status"`
	FirstSeenCycle    string             `json:"first_seen_cycle"`
	CompletedCycle    string             `json:"completed_cycle,omitempty"`
	LastErrorCategory tfterrors.Category `json:"last_error_category,omitempty"`
}

// Registry is the interface every backend (embedded, Postgres) implements,
// matching the §4.2 contract exactly.
type Registry interface {
	Status(matchID string) (Status, error)
	Claim(matchID, cycleID string) (ClaimResult, error)
	Complete(matchID, cycleID string) error
	Fail(matchID string, category tfterrors.Category) error
	MarkIncomplete(matchID, cycleID string) error
	SeenPlayer(puuid, cycleID string) error
	LastSeenCycle(puuid string) (string, bool, error)
	Close() error
}

// Embedded is the default backend: an in-memory index written as an atomic
// JSON snapshot on Flush and Close, fronted by a bloom filter that lets
// Status short-circuit to StatusUnseen without touching the index for
// matches that were never seen at all.
type Embedded struct {
	mu       sync.Mutex
	path     string
	matches  map[string]*MatchRecord
	players  map[string]string // puuid -> last seen cycleId
	filter   *bloom.BloomFilter
	dirty    bool
}

// EmbeddedOptions configures the bloom filter's sizing. ExpectedMatches is
// the expected number of distinct matches across the registry's lifetime;
// FalsePositiveRate is the bloom filter's target false-positive rate.
type EmbeddedOptions struct {
	ExpectedMatches   uint
	FalsePositiveRate float64
}

// DefaultEmbeddedOptions mirrors the teacher's spider.go sizing
// (bloom.NewWithEstimates(500000, 0.001)) scaled down for a single-region
// cycle's expected match volume.
func DefaultEmbeddedOptions() EmbeddedOptions {
	return EmbeddedOptions{ExpectedMatches: 200_000, FalsePositiveRate: 0.001}
}

// NewEmbedded constructs an Embedded registry rooted at path, loading any
// existing snapshot.
func NewEmbedded(path string, opts EmbeddedOptions) (*Embedded, error) {
	e := &Embedded{
		path:    path,
		matches: make(map[string]*MatchRecord),
		players: make(map[string]string),
		filter:  bloom.NewWithEstimates(opts.ExpectedMatches, opts.FalsePositiveRate),
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

type embeddedSnapshot struct {
	Matches map[string]*MatchRecord `json:"matches"`
	Players map[string]string       `json:"players"`
}

func (e *Embedded) load() error {
	data, err := os.ReadFile(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("registry: read snapshot: %w", err)
	}
	var snap embeddedSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("registry: unmarshal snapshot: %w", err)
	}
	e.matches = snap.Matches
	if e.matches == nil {
		e.matches = make(map[string]*MatchRecord)
	}
	e.players = snap.Players
	if e.players == nil {
		e.players = make(map[string]string)
	}
	for matchID := range e.matches {
		e.filter.AddString(matchID)
	}
	return nil
}

// Flush atomically persists the current in-memory state to disk, following
// the temp-file-then-rename discipline used throughout this module.
func (e *Embedded) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flushLocked()
}

func (e *Embedded) flushLocked() error {
	if !e.dirty {
		return nil
	}
	snap := embeddedSnapshot{Matches: e.matches, Players: e.players}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("registry: marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return fmt.Errorf("registry: create dir: %w", err)
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("registry: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("registry: rename snapshot into place: %w", err)
	}
	e.dirty = false
	return nil
}

// Status implements Registry. A bloom-filter miss returns StatusUnseen
// without touching the map; a hit falls through to the authoritative index,
// since the filter can false-positive but never false-negative.
func (e *Embedded) Status(matchID string) (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.filter.TestString(matchID) {
		return StatusUnseen, nil
	}
	rec, ok := e.matches[matchID]
	if !ok {
		return StatusUnseen, nil
	}
	return rec.Status, nil
}

// Claim implements Registry's atomic claim-or-skip semantics.
func (e *Embedded) Claim(matchID, cycleID string) (ClaimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, ok := e.matches[matchID]
	if !ok {
		e.matches[matchID] = &MatchRecord{MatchID: matchID, Status: StatusInProgress, FirstSeenCycle: cycleID}
		e.filter.AddString(matchID)
		e.dirty = true
		return Claimed, nil
	}

	switch rec.Status {
	case StatusComplete:
		return SkipComplete, nil
	case StatusInProgress:
		return SkipInFlight, nil
	case StatusUnseen, StatusFailed, StatusIncomplete:
		rec.Status = StatusInProgress
		e.dirty = true
		return Claimed, nil
	default:
		return Claimed, nil
	}
}

// Complete implements Registry: marks a match COMPLETE and freezes it.
func (e *Embedded) Complete(matchID, cycleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.matches[matchID]
	if !ok {
		rec = &MatchRecord{MatchID: matchID, FirstSeenCycle: cycleID}
		e.matches[matchID] = rec
		e.filter.AddString(matchID)
	}
	rec.Status = StatusComplete
	rec.CompletedCycle = cycleID
	e.dirty = true
	return nil
}

// MarkIncomplete records a match as INCOMPLETE (fewer than the expected
// participant count), used by the incomplete-match policy.
func (e *Embedded) MarkIncomplete(matchID, cycleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.matches[matchID]
	if !ok {
		rec = &MatchRecord{MatchID: matchID, FirstSeenCycle: cycleID}
		e.matches[matchID] = rec
		e.filter.AddString(matchID)
	}
	if rec.Status != StatusComplete {
		rec.Status = StatusIncomplete
	}
	e.dirty = true
	return nil
}

// Fail implements Registry: marks a match FAILED under the given category.
// A COMPLETE match is never overwritten, per the monotone-progress
// invariant.
func (e *Embedded) Fail(matchID string, category tfterrors.Category) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.matches[matchID]
	if !ok {
		rec = &MatchRecord{MatchID: matchID}
		e.matches[matchID] = rec
		e.filter.AddString(matchID)
	}
	if rec.Status != StatusComplete {
		rec.Status = StatusFailed
	}
	rec.LastErrorCategory = category
	e.dirty = true
	return nil
}

// SeenPlayer implements Registry.
func (e *Embedded) SeenPlayer(puuid, cycleID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.players[puuid] = cycleID
	e.dirty = true
	return nil
}

// LastSeenCycle implements Registry.
func (e *Embedded) LastSeenCycle(puuid string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cycle, ok := e.players[puuid]
	return cycle, ok, nil
}

// Close flushes any pending writes.
func (e *Embedded) Close() error {
	return e.Flush()
}
