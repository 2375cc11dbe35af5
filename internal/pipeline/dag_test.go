package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/riot"
	"github.com/tft-collector/tftcollector/internal/storage"
)

func fakeArtifact() *collector.Artifact {
	a := collector.NewArtifact(collector.CollectionInfo{DataVersion: "1.0.0"})
	participants := make([]riot.MatchParticipant, 0, riot.ExpectedParticipantCount)
	for i := 0; i < riot.ExpectedParticipantCount; i++ {
		puuid := "puuid-" + string(rune('0'+i))
		participants = append(participants, riot.MatchParticipant{
			PUUID:                puuid,
			Placement:            i + 1,
			LastRound:            25,
			PlayersEliminated:    1,
			TotalDamageToPlayers: 40,
			Units:                []riot.Unit{{}},
			Traits:               []riot.Trait{{}},
		})
		a.Players[puuid] = collector.PlayerRecord{PUUID: puuid}
	}
	a.Matches["match1"] = collector.MatchRecord{
		MatchID: "match1",
		Info: riot.MatchInfo{
			GameVersion:  "14.1",
			Participants: participants,
		},
	}
	return a
}

func writeArtifact(l storage.Layout, cycleID string, a *collector.Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(l.RawArtifact(cycleID)), 0o755); err != nil {
		return err
	}
	return os.WriteFile(l.RawArtifact(cycleID), data, 0o644)
}

func collectFakeArtifact(l storage.Layout, cycleID string) func(context.Context) error {
	return func(ctx context.Context) error { return writeArtifact(l, cycleID, fakeArtifact()) }
}

func TestRunCycle_ProducesAllDeclaredOutputs(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.QualityThreshold = 0

	err := RunCycle(context.Background(), nil, cfg, "20260806", collectFakeArtifact(cfg.Layout, "20260806"))
	require.NoError(t, err)

	l := cfg.Layout
	for _, path := range []string{
		l.RawArtifact("20260806"),
		l.ValidationReport("20260806"),
		l.Validated("20260806"),
		l.Transformed("20260806"),
		l.QualityReport("20260806"),
		l.CrossCycleReport("20260806"),
		l.Provenance("20260806"),
		l.ParquetMatches("20260806"),
		l.ParquetParticipants("20260806"),
		l.BackupBundle("20260806"),
		l.BackupMetadata("20260806"),
	} {
		_, err := os.Stat(path)
		assert.NoError(t, err, "expected output %s to exist", path)
	}
}

func TestRunCycle_QualityBelowThresholdFailsCycle(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.QualityThreshold = 0.99

	a := fakeArtifact()
	m := a.Matches["match1"]
	m.Incomplete = true // depresses the completeness dimension well below 99%
	a.Matches["match1"] = m

	err := RunCycle(context.Background(), nil, cfg, "20260806", func(ctx context.Context) error {
		return writeArtifact(cfg.Layout, "20260806", a)
	})
	require.Error(t, err, "expected RunCycle to fail when quality score is below threshold")
}

func TestRunMany_RunsEachCycleIndependently(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.QualityThreshold = 0

	cycleIDs := []string{"20260730", "20260806"}
	err := RunMany(context.Background(), nil, cfg, cycleIDs, 2, func(cycleID string) func(context.Context) error {
		return collectFakeArtifact(cfg.Layout, cycleID)
	})
	require.NoError(t, err)
	for _, cycleID := range cycleIDs {
		_, err := os.Stat(cfg.Layout.BackupBundle(cycleID))
		assert.NoError(t, err, "expected backup bundle for cycle %s", cycleID)
	}
}
