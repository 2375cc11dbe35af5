package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/notify"
	"github.com/tft-collector/tftcollector/internal/provenance"
	"github.com/tft-collector/tftcollector/internal/quality"
	"github.com/tft-collector/tftcollector/internal/storage"
	"github.com/tft-collector/tftcollector/internal/telemetry"
)

// Config parameterizes one cycle's DAG run, covering the recognized options
// table of §4.5.
type Config struct {
	Layout              storage.Layout
	QualityThreshold    float64
	BackupAutoBackup    bool
	BackupRetentionDays int
	OrchestratorVersion string
	WorkflowVersion     string
	PreviousCycleID     string
	Notifier            notify.Notifier
	// Dependencies names the third-party libraries this cycle's pipeline run
	// exercises, recorded as per-dependency entities in the provenance
	// document (§4.6).
	Dependencies []string
}

// DefaultConfig fills in the design defaults for options §4.5 leaves open.
func DefaultConfig(root string) Config {
	return Config{
		Layout:              storage.NewLayout(root),
		QualityThreshold:    0.6,
		BackupAutoBackup:    true,
		BackupRetentionDays: 30,
		OrchestratorVersion: "tftcollector-orchestrator/1.0",
		WorkflowVersion:     "tftcollector-workflow/1.0",
		Notifier:            notify.NewLogNotifier(nil),
		Dependencies: []string{
			"parquet-go/parquet-go",
			"klauspost/compress",
			"gofrs/flock",
			"bits-and-blooms/bloom/v3",
			"pelletier/go-toml/v2",
			"jackc/pgx/v5",
		},
	}
}

// RunCycle executes the full collect→validate→transform→quality→{cross_cycle,
// provenance, parquet, backup} DAG for one cycleId. collect is supplied by
// the caller (the CLI layer, which owns the Collection Engine's
// dependencies); every other stage is a concrete implementation of this
// expansion.
func RunCycle(ctx context.Context, logger *slog.Logger, cfg Config, cycleID string, collect func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	l := cfg.Layout

	if err := RunStage(ctx, logger, Stage{
		Name:    "collect",
		Outputs: []string{l.RawArtifact(cycleID)},
		Run:     collect,
	}); err != nil {
		return err
	}

	if err := RunStage(ctx, logger, Stage{
		Name:    "validate",
		Inputs:  []string{l.RawArtifact(cycleID)},
		Outputs: []string{l.ValidationReport(cycleID), l.Validated(cycleID)},
		Run:     func(ctx context.Context) error { return validateStage(l, cycleID) },
	}); err != nil {
		return err
	}

	if err := RunStage(ctx, logger, Stage{
		Name:    "transform",
		Inputs:  []string{l.Validated(cycleID)},
		Outputs: []string{l.Transformed(cycleID)},
		Run:     func(ctx context.Context) error { return transformStage(l, cycleID) },
	}); err != nil {
		return err
	}

	if err := RunStage(ctx, logger, Stage{
		Name:    "quality",
		Inputs:  []string{l.Validated(cycleID)},
		Outputs: []string{l.QualityReport(cycleID)},
		Run:     func(ctx context.Context) error { return qualityStage(ctx, l, cycleID, cfg.QualityThreshold, cfg.Notifier) },
	}); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return RunStage(gctx, logger, Stage{
			Name:    "cross_cycle",
			Inputs:  []string{l.Validated(cycleID)},
			Outputs: []string{l.CrossCycleReport(cycleID)},
			Run:     func(context.Context) error { return crossCycleStage(l, cycleID, cfg.PreviousCycleID) },
		})
	})
	g.Go(func() error {
		return RunStage(gctx, logger, Stage{
			Name:    "provenance",
			Inputs:  []string{l.Validated(cycleID), l.Transformed(cycleID), l.QualityReport(cycleID)},
			Outputs: []string{l.Provenance(cycleID)},
			Run:     func(context.Context) error { return provenanceStage(l, cfg, cycleID) },
		})
	})
	g.Go(func() error {
		return RunStage(gctx, logger, Stage{
			Name:    "parquet",
			Inputs:  []string{l.Validated(cycleID)},
			Outputs: []string{l.ParquetMatches(cycleID), l.ParquetParticipants(cycleID)},
			Run:     func(context.Context) error { return parquetStage(l, cycleID) },
		})
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if cfg.BackupAutoBackup {
		if err := RunStage(ctx, logger, Stage{
			Name:    "backup",
			Inputs:  []string{l.Validated(cycleID), l.Transformed(cycleID), l.Provenance(cycleID)},
			Outputs: []string{l.BackupBundle(cycleID), l.BackupMetadata(cycleID)},
			Run:     func(context.Context) error { return backupStage(l, cycleID, cfg.BackupRetentionDays) },
		}); err != nil {
			return err
		}
	}

	return nil
}

// RunMany fans out RunCycle across multiple cycleIds sharing no state except
// the Registry each collect closure already closes over, bounded by
// parallelism, per §4.5's "Parameterization" clause.
func RunMany(ctx context.Context, logger *slog.Logger, cfg Config, cycleIDs []string, parallelism int, collectFor func(cycleID string) func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, cycleID := range cycleIDs {
		cycleID := cycleID
		g.Go(func() error {
			return RunCycle(gctx, logger, cfg, cycleID, collectFor(cycleID))
		})
	}
	return g.Wait()
}

func loadArtifact(path string) (*collector.Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pipeline: read artifact: %w", err)
	}
	var a collector.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("pipeline: unmarshal artifact: %w", err)
	}
	return &a, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("pipeline: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("pipeline: create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("pipeline: write temp file: %w", err)
	}
	return os.Rename(tmp, path)
}

// validationReport is the shape written to reports/validation_<cycleId>.json.
type validationReport struct {
	CycleID string `json:"cycleId"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
}

func validateStage(l storage.Layout, cycleID string) error {
	artifact, err := loadArtifact(l.RawArtifact(cycleID))
	if err != nil {
		return err
	}
	report := validationReport{CycleID: cycleID, Valid: true}
	if err := artifact.ValidateInvariants(); err != nil {
		report.Valid = false
		report.Error = err.Error()
	}
	if err := writeJSON(l.ValidationReport(cycleID), report); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("pipeline: validation failed: %s", report.Error)
	}
	return writeJSON(l.Validated(cycleID), artifact)
}

// jsonldDocument is the transform stage's output shape, per §6's excerpt:
// the same envelope with players/matches promoted to @graph entries.
type jsonldDocument struct {
	Context        map[string]string        `json:"@context"`
	Type           string                   `json:"@type"`
	CollectionInfo collector.CollectionInfo `json:"collectionInfo"`
	Graph          []jsonldNode             `json:"@graph"`
}

type jsonldNode struct {
	ID   string      `json:"@id"`
	Type string      `json:"@type"`
	Data interface{} `json:"data"`
}

func transformStage(l storage.Layout, cycleID string) error {
	artifact, err := loadArtifact(l.Validated(cycleID))
	if err != nil {
		return err
	}
	doc := jsonldDocument{
		Context:        artifact.Context,
		Type:           artifact.Type,
		CollectionInfo: artifact.CollectionInfo,
	}
	playerIDs := make([]string, 0, len(artifact.Players))
	for id := range artifact.Players {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)
	for _, id := range playerIDs {
		doc.Graph = append(doc.Graph, jsonldNode{ID: "tft:player/" + id, Type: "tft:Player", Data: artifact.Players[id]})
	}
	matchIDs := make([]string, 0, len(artifact.Matches))
	for id := range artifact.Matches {
		matchIDs = append(matchIDs, id)
	}
	sort.Strings(matchIDs)
	for _, id := range matchIDs {
		doc.Graph = append(doc.Graph, jsonldNode{ID: "tft:match/" + id, Type: "tft:Match", Data: artifact.Matches[id]})
	}
	return writeJSON(l.Transformed(cycleID), doc)
}

func qualityStage(ctx context.Context, l storage.Layout, cycleID string, threshold float64, notifier notify.Notifier) error {
	artifact, err := loadArtifact(l.Validated(cycleID))
	if err != nil {
		return err
	}
	score := quality.Evaluate(artifact)
	score.CycleID = cycleID
	if err := writeJSON(l.QualityReport(cycleID), score); err != nil {
		return err
	}
	if m := telemetry.Get(); m != nil {
		m.QualityScore.WithLabelValues(cycleID).Set(score.WeightedTotal)
	}
	if threshold > 0 && score.WeightedTotal/100 < threshold {
		if notifier != nil {
			_ = notifier.Notify(ctx, notify.QualityBelowThreshold(cycleID, score.WeightedTotal, threshold))
		}
		return fmt.Errorf("pipeline: quality score %.1f below threshold %.0f%%", score.WeightedTotal, threshold*100)
	}
	return nil
}

// crossCycleReport compares the current cycle's player set against the
// previous cycle's, per §4.5's cross_cycle stage description.
type crossCycleReport struct {
	CycleID         string   `json:"cycleId"`
	PreviousCycleID string   `json:"previousCycleId,omitempty"`
	NewPlayers      []string `json:"newPlayers"`
	ChurnedPlayers  []string `json:"churnedPlayers"`
	OverlapCount    int      `json:"overlapCount"`
}

func crossCycleStage(l storage.Layout, cycleID, previousCycleID string) error {
	current, err := loadArtifact(l.Validated(cycleID))
	if err != nil {
		return err
	}
	report := crossCycleReport{CycleID: cycleID, PreviousCycleID: previousCycleID}
	if previousCycleID == "" {
		return writeJSON(l.CrossCycleReport(cycleID), report)
	}
	previous, err := loadArtifact(l.Validated(previousCycleID))
	if err != nil {
		// A missing previous cycle is not fatal: the report simply records
		// that no comparison baseline was available.
		return writeJSON(l.CrossCycleReport(cycleID), report)
	}

	for id := range current.Players {
		if _, ok := previous.Players[id]; ok {
			report.OverlapCount++
		} else {
			report.NewPlayers = append(report.NewPlayers, id)
		}
	}
	for id := range previous.Players {
		if _, ok := current.Players[id]; !ok {
			report.ChurnedPlayers = append(report.ChurnedPlayers, id)
		}
	}
	sort.Strings(report.NewPlayers)
	sort.Strings(report.ChurnedPlayers)
	return writeJSON(l.CrossCycleReport(cycleID), report)
}

// provenanceStages mirrors RunCycle's own Stage declarations exactly (§4.6:
// "one [activity] per stage plus an overall workflow activity"), including
// the three stages that run concurrently with provenance itself in the
// errgroup barrier and the backup stage that runs after it; entities for
// outputs not yet written when this stage executes are simply omitted by
// internEntities rather than failing the document.
func provenanceStages(l storage.Layout, cycleID string) []provenance.StageIO {
	return []provenance.StageIO{
		{Name: "collect", Outputs: []string{l.RawArtifact(cycleID)}},
		{Name: "validate", Inputs: []string{l.RawArtifact(cycleID)}, Outputs: []string{l.ValidationReport(cycleID), l.Validated(cycleID)}},
		{Name: "transform", Inputs: []string{l.Validated(cycleID)}, Outputs: []string{l.Transformed(cycleID)}},
		{Name: "quality", Inputs: []string{l.Validated(cycleID)}, Outputs: []string{l.QualityReport(cycleID)}},
		{Name: "cross_cycle", Inputs: []string{l.Validated(cycleID)}, Outputs: []string{l.CrossCycleReport(cycleID)}},
		{Name: "provenance", Inputs: []string{l.Validated(cycleID), l.Transformed(cycleID), l.QualityReport(cycleID)}},
		{Name: "parquet", Inputs: []string{l.Validated(cycleID)}, Outputs: []string{l.ParquetMatches(cycleID), l.ParquetParticipants(cycleID)}},
		{Name: "backup", Inputs: []string{l.Validated(cycleID), l.Transformed(cycleID), l.Provenance(cycleID)}, Outputs: []string{l.BackupBundle(cycleID), l.BackupMetadata(cycleID)}},
	}
}

func provenanceStage(l storage.Layout, cfg Config, cycleID string) error {
	assembler := provenance.NewAssembler(cfg.OrchestratorVersion, cfg.WorkflowVersion)

	var previous *provenance.Document
	if cfg.PreviousCycleID != "" {
		prev, err := provenance.Load(l.Provenance(cfg.PreviousCycleID))
		if err == nil {
			previous = prev
		}
	}

	errorCounts := provenance.ErrorCounts{}
	if artifact, err := loadArtifact(l.Validated(cycleID)); err == nil {
		for category, summary := range artifact.ErrorSummary.ErrorsByCategory {
			errorCounts[string(category)] = summary.Count
		}
	}

	doc, err := assembler.Assemble(cycleID, provenanceStages(l, cycleID), previous, errorCounts, cfg.Dependencies)
	if err != nil {
		return err
	}
	return provenance.Save(doc, l.Provenance(cycleID))
}

func parquetStage(l storage.Layout, cycleID string) error {
	artifact, err := loadArtifact(l.Validated(cycleID))
	if err != nil {
		return err
	}
	return storage.WriteParquet(artifact, l, cycleID)
}

func backupStage(l storage.Layout, cycleID string, retentionDays int) error {
	sources := []string{
		l.RawArtifact(cycleID),
		l.Validated(cycleID),
		l.Transformed(cycleID),
		l.ValidationReport(cycleID),
		l.QualityReport(cycleID),
		l.Provenance(cycleID),
	}
	_, err := storage.Backup(cycleID, sources, l, retentionDays)
	return err
}
