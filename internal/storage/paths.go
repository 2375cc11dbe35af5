// Package storage implements the deterministic per-cycle output path layout
// of §6, the Parquet conversion stage, and the backup bundling stage.
// The compressed-bundle logic is adapted from the teacher's
// internal/storage/rotator.go CompressToCold helper (hot/warm/cold rotation
// for a continuous League spider), generalized from a rotating hot-file
// scheme into a single deterministic bundle per finished cycle.
package storage

import (
	"fmt"
	"path/filepath"
)

// Layout resolves every deterministic path named in §6, rooted at a base
// data directory.
type Layout struct {
	Root string
}

// NewLayout constructs a Layout rooted at root (default "." when empty).
func NewLayout(root string) Layout {
	if root == "" {
		root = "."
	}
	return Layout{Root: root}
}

func (l Layout) path(parts ...string) string {
	return filepath.Join(append([]string{l.Root}, parts...)...)
}

func (l Layout) RawArtifact(cycleID string) string {
	return l.path("data", "raw", fmt.Sprintf("tft_collection_%s.json", cycleID))
}

func (l Layout) Checkpoint(cycleID string) string {
	return l.path("data", "raw", fmt.Sprintf("tft_collection_%s_checkpoint.json", cycleID))
}

func (l Layout) Validated(cycleID string) string {
	return l.path("data", "validated", fmt.Sprintf("tft_collection_%s.json", cycleID))
}

func (l Layout) Transformed(cycleID string) string {
	return l.path("data", "transformed", fmt.Sprintf("tft_collection_%s.jsonld", cycleID))
}

func (l Layout) ParquetDir(cycleID string) string {
	return l.path("data", "parquet", cycleID)
}

func (l Layout) ParquetMatches(cycleID string) string {
	return filepath.Join(l.ParquetDir(cycleID), "matches.parquet")
}

func (l Layout) ParquetParticipants(cycleID string) string {
	return filepath.Join(l.ParquetDir(cycleID), "participants.parquet")
}

func (l Layout) ValidationReport(cycleID string) string {
	return l.path("reports", fmt.Sprintf("validation_%s.json", cycleID))
}

func (l Layout) QualityReport(cycleID string) string {
	return l.path("reports", fmt.Sprintf("quality_%s.json", cycleID))
}

func (l Layout) CrossCycleReport(cycleID string) string {
	return l.path("reports", fmt.Sprintf("cross_cycle_%s.json", cycleID))
}

func (l Layout) Provenance(cycleID string) string {
	return l.path("provenance", fmt.Sprintf("workflow_%s.prov.json", cycleID))
}

func (l Layout) BackupBundle(cycleID string) string {
	return l.path("backups", fmt.Sprintf("backup_%s.tar.gz", cycleID))
}

func (l Layout) BackupMetadata(cycleID string) string {
	return l.path("backups", fmt.Sprintf("backup_%s_metadata.json", cycleID))
}

func (l Layout) Log(cycleID string) string {
	return l.path("logs", fmt.Sprintf("collection_%s.log", cycleID))
}
