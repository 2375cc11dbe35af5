package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/errors"
	"github.com/tft-collector/tftcollector/internal/riot"
)

func fullParticipant(puuid string, placement int) riot.MatchParticipant {
	return riot.MatchParticipant{
		PUUID:                puuid,
		Placement:            placement,
		LastRound:            30,
		PlayersEliminated:    1,
		TotalDamageToPlayers: 50,
		Units:                []riot.Unit{{}},
		Traits:               []riot.Trait{{}},
	}
}

func artifactWithMatches(n int) *collector.Artifact {
	a := collector.NewArtifact(collector.CollectionInfo{})
	for i := 0; i < n; i++ {
		matchID := "match" + string(rune('A'+i))
		participants := make([]riot.MatchParticipant, 0, riot.ExpectedParticipantCount)
		for j := 0; j < riot.ExpectedParticipantCount; j++ {
			puuid := matchID + "-p" + string(rune('0'+j))
			participants = append(participants, fullParticipant(puuid, j+1))
			a.Players[puuid] = collector.PlayerRecord{PUUID: puuid}
		}
		a.Matches[matchID] = collector.MatchRecord{
			MatchID: matchID,
			Info: riot.MatchInfo{
				GameVersion:  "14.1",
				Participants: participants,
			},
		}
	}
	return a
}

func TestEvaluate_PerfectArtifactScoresA(t *testing.T) {
	a := artifactWithMatches(4)
	score := Evaluate(a)
	assert.Equal(t, GradeA, score.Grade, "weighted total %.1f", score.WeightedTotal)
	assert.Equal(t, 4, score.MatchesEvaluated)
}

func TestEvaluate_EmptyArtifactScoresF(t *testing.T) {
	a := collector.NewArtifact(collector.CollectionInfo{})
	score := Evaluate(a)
	assert.Equal(t, GradeF, score.Grade)
}

func TestEvaluate_IncompleteMatchLowersCompleteness(t *testing.T) {
	a := artifactWithMatches(1)
	for id, m := range a.Matches {
		m.Incomplete = true
		a.Matches[id] = m
	}
	score := Evaluate(a)
	assert.Zero(t, score.Completeness)
}

func TestEvaluate_FailedMatchLowersIntegrity(t *testing.T) {
	a := artifactWithMatches(2)
	account := errors.NewAccount()
	var firstID string
	for id := range a.Matches {
		firstID = id
		break
	}
	account.RecordMatch(errors.CategoryNotFound, firstID)
	a.ErrorSummary = account.Snapshot()

	score := Evaluate(a)
	require.Less(t, score.Integrity, 1.0, "expected integrity below 1 with a recorded failure")
}

func TestGradeFor_Thresholds(t *testing.T) {
	cases := map[float64]Grade{
		95: GradeA,
		90: GradeA,
		85: GradeB,
		80: GradeB,
		75: GradeC,
		70: GradeC,
		65: GradeD,
		60: GradeD,
		10: GradeF,
	}
	for total, want := range cases {
		assert.Equal(t, want, GradeFor(total), "GradeFor(%.0f)", total)
	}
}
