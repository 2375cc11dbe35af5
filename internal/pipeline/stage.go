// Package pipeline implements the Pipeline Orchestrator: a deterministic
// DAG of stages keyed by cycleId, each declaring its inputs/outputs and
// skipped when its outputs are already newer than its inputs. Multi-cycle
// fan-out uses a bounded errgroup.Group, following the priority-group
// parallel-enrichment pattern in AleutianLocal's
// services/trace/analysis/enricher.go, generalized from priority-tiered
// enrichers into this DAG's fixed collect→validate→transform→quality
// dependency edges.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tft-collector/tftcollector/internal/telemetry"
)

// Stage is one DAG node. Run performs the stage's work; it may assume all
// declared Inputs exist (the runner checks this before calling Run).
type Stage struct {
	Name    string
	Inputs  []string
	Outputs []string
	Run     func(ctx context.Context) error
}

// outputsFresh reports whether every output exists and is newer than every
// input, in which case the stage is skipped.
func outputsFresh(inputs, outputs []string) bool {
	if len(outputs) == 0 {
		return false
	}
	var latestInput int64
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			continue
		}
		if m := info.ModTime().UnixNano(); m > latestInput {
			latestInput = m
		}
	}
	for _, out := range outputs {
		info, err := os.Stat(out)
		if err != nil {
			return false
		}
		if info.ModTime().UnixNano() < latestInput {
			return false
		}
	}
	return true
}

// missingOutputs returns the subset of a stage's declared outputs that do
// not exist after Run returned, the condition that fails the DAG per §4.5's
// stage contract.
func missingOutputs(outputs []string) []string {
	var missing []string
	for _, out := range outputs {
		if _, err := os.Stat(out); err != nil {
			missing = append(missing, out)
		}
	}
	return missing
}

// RunStage executes stage unless its outputs are already fresh, logging the
// decision, and verifies every declared output exists afterward.
func RunStage(ctx context.Context, logger *slog.Logger, stage Stage) error {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("stage", stage.Name)

	if outputsFresh(stage.Inputs, stage.Outputs) {
		log.Info("skipping stage, outputs are fresh")
		if m := telemetry.Get(); m != nil {
			m.StageSkipped.WithLabelValues(stage.Name).Inc()
		}
		return nil
	}

	if missing := missingOutputs(stage.Inputs); len(missing) > 0 {
		return fmt.Errorf("pipeline: stage %s is missing declared inputs: %v", stage.Name, missing)
	}

	log.Info("running stage")
	started := time.Now()
	err := stage.Run(ctx)
	if m := telemetry.Get(); m != nil {
		m.StageDuration.WithLabelValues(stage.Name).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		if m := telemetry.Get(); m != nil {
			m.StageFailed.WithLabelValues(stage.Name).Inc()
		}
		return fmt.Errorf("pipeline: stage %s: %w", stage.Name, err)
	}

	if missing := missingOutputs(stage.Outputs); len(missing) > 0 {
		if m := telemetry.Get(); m != nil {
			m.StageFailed.WithLabelValues(stage.Name).Inc()
		}
		return fmt.Errorf("pipeline: stage %s completed but is missing declared outputs: %v", stage.Name, missing)
	}
	log.Info("stage complete")
	return nil
}
