package storage

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/tft-collector/tftcollector/internal/collector"
)

// MatchRow is one row of matches.parquet: the match-level fields, one row
// per match.
type MatchRow struct {
	MatchID      string  `parquet:"match_id"`
	GameDatetime int64   `parquet:"game_datetime"`
	GameLength   float64 `parquet:"game_length"`
	GameVersion  string  `parquet:"game_version"`
	QueueID      int     `parquet:"queue_id"`
	TFTSetNumber int     `parquet:"tft_set_number"`
	Incomplete   bool    `parquet:"incomplete"`
}

// ParticipantRow is one row of participants.parquet: one row per
// (match, puuid) pair, the columnar shape analytics consumers query against.
type ParticipantRow struct {
	MatchID              string `parquet:"match_id"`
	PUUID                string `parquet:"puuid"`
	Placement            int    `parquet:"placement"`
	Level                int    `parquet:"level"`
	LastRound            int    `parquet:"last_round"`
	PlayersEliminated    int    `parquet:"players_eliminated"`
	TotalDamageToPlayers int    `parquet:"total_damage_to_players"`
	UnitCount            int    `parquet:"unit_count"`
	TraitCount           int    `parquet:"trait_count"`
}

// WriteParquet converts an Artifact's matches into the two columnar files
// the parquet stage declares (§4.5): matches.parquet and
// participants.parquet, using parquet-go's generic writer.
func WriteParquet(a *collector.Artifact, layout Layout, cycleID string) error {
	if err := os.MkdirAll(layout.ParquetDir(cycleID), 0o755); err != nil {
		return fmt.Errorf("storage: create parquet dir: %w", err)
	}

	var matchRows []MatchRow
	var participantRows []ParticipantRow
	for matchID, m := range a.Matches {
		matchRows = append(matchRows, MatchRow{
			MatchID:      matchID,
			GameDatetime: m.Info.GameDatetime,
			GameLength:   m.Info.GameLength,
			GameVersion:  m.Info.GameVersion,
			QueueID:      m.Info.QueueID,
			TFTSetNumber: m.Info.TFTSetNumber,
			Incomplete:   m.Incomplete,
		})
		for _, p := range m.Info.Participants {
			participantRows = append(participantRows, ParticipantRow{
				MatchID:              matchID,
				PUUID:                p.PUUID,
				Placement:            p.Placement,
				Level:                p.Level,
				LastRound:            p.LastRound,
				PlayersEliminated:    p.PlayersEliminated,
				TotalDamageToPlayers: p.TotalDamageToPlayers,
				UnitCount:            len(p.Units),
				TraitCount:           len(p.Traits),
			})
		}
	}

	if err := writeRows(layout.ParquetMatches(cycleID), matchRows); err != nil {
		return err
	}
	if err := writeRows(layout.ParquetParticipants(cycleID), participantRows); err != nil {
		return err
	}
	return nil
}

func writeRows[T any](path string, rows []T) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storage: create parquet file: %w", err)
	}
	w := parquet.NewGenericWriter[T](f)
	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			w.Close()
			f.Close()
			return fmt.Errorf("storage: write parquet rows: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("storage: close parquet writer: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close parquet file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: rename parquet file into place: %w", err)
	}
	return nil
}
