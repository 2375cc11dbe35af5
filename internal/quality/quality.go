// Package quality implements the Quality Assurance stage's weighted
// completeness/consistency/accuracy/integrity/structure score, resolving
// the specification's Open Question on scoring weights against the original
// implementation's quality_assurance/quality_metrics.py.
package quality

import (
	"github.com/tft-collector/tftcollector/internal/collector"
	"github.com/tft-collector/tftcollector/internal/riot"
)

// Weights are the fixed dimension weights, summing to 1.0, taken verbatim
// from quality_metrics.py's calculate_data_quality_score.
const (
	WeightCompleteness = 0.25
	WeightConsistency  = 0.20
	WeightAccuracy     = 0.20
	WeightIntegrity    = 0.15
	WeightStructure    = 0.20
)

// Grade is a letter grade derived from a weighted score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Score is the QA stage's report shape, written to
// reports/quality_<cycleId>.json.
type Score struct {
	CycleID          string  `json:"cycleId"`
	Completeness     float64 `json:"completeness"`
	Consistency      float64 `json:"consistency"`
	Accuracy         float64 `json:"accuracy"`
	Integrity        float64 `json:"integrity"`
	Structure        float64 `json:"structure"`
	WeightedTotal    float64 `json:"weightedTotal"`
	Grade            Grade   `json:"grade"`
	MatchesEvaluated int     `json:"matchesEvaluated"`
	Notes            []string `json:"notes,omitempty"`
}

// GradeFor maps a 0-100 weighted total to a letter grade, matching
// quality_metrics.py's thresholds exactly (A>=90, B>=80, C>=70, D>=60, else F).
func GradeFor(total float64) Grade {
	switch {
	case total >= 90:
		return GradeA
	case total >= 80:
		return GradeB
	case total >= 70:
		return GradeC
	case total >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// Evaluate computes a Score for a collector.Artifact.
//
//   - completeness: fraction of matches with a full ExpectedParticipantCount
//     lobby (matches marked incomplete count against this dimension).
//   - consistency: fraction of matches whose every participant puuid
//     resolves to a players entry (should be 1.0 whenever
//     ValidateInvariants passed, kept as a defense-in-depth measurement).
//   - accuracy: fraction of participants with in-range placement (1..8) and
//     non-negative counters (damage, eliminations, last_round).
//   - integrity: fraction of matches whose error_summary contains no
//     recorded failure against that match-ID.
//   - structure: fraction of matches carrying a non-empty game_version and
//     at least one unit or trait per participant.
func Evaluate(a *collector.Artifact) Score {
	total := len(a.Matches)
	if total == 0 {
		return Score{CycleID: a.CollectionInfo.Timestamp.Format("20060102"), Grade: GradeF, Notes: []string{"no matches to evaluate"}}
	}

	var completeCount, consistentCount, accurateCount, structuredCount int
	failedMatchIDs := failedMatchSet(a)

	for _, m := range a.Matches {
		if !m.Incomplete && len(m.Info.Participants) == riot.ExpectedParticipantCount {
			completeCount++
		}
		if participantsResolve(a, m) {
			consistentCount++
		}
		if allParticipantsAccurate(m) {
			accurateCount++
		}
		if wellStructured(m) {
			structuredCount++
		}
	}
	integrityCount := total
	for id := range failedMatchIDs {
		if _, ok := a.Matches[id]; ok {
			integrityCount--
		}
	}

	s := Score{
		Completeness:     ratio(completeCount, total),
		Consistency:      ratio(consistentCount, total),
		Accuracy:         ratio(accurateCount, total),
		Integrity:        ratio(integrityCount, total),
		Structure:        ratio(structuredCount, total),
		MatchesEvaluated: total,
	}
	s.WeightedTotal = 100 * (s.Completeness*WeightCompleteness +
		s.Consistency*WeightConsistency +
		s.Accuracy*WeightAccuracy +
		s.Integrity*WeightIntegrity +
		s.Structure*WeightStructure)
	s.Grade = GradeFor(s.WeightedTotal)
	return s
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func failedMatchSet(a *collector.Artifact) map[string]bool {
	out := make(map[string]bool)
	for _, cat := range a.ErrorSummary.ErrorsByCategory {
		for _, id := range cat.MatchIDs {
			out[id] = true
		}
	}
	return out
}

func participantsResolve(a *collector.Artifact, m collector.MatchRecord) bool {
	for _, p := range m.Info.Participants {
		if _, ok := a.Players[p.PUUID]; !ok {
			return false
		}
	}
	return true
}

func allParticipantsAccurate(m collector.MatchRecord) bool {
	for _, p := range m.Info.Participants {
		if p.Placement < 1 || p.Placement > riot.ExpectedParticipantCount {
			return false
		}
		if p.TotalDamageToPlayers < 0 || p.PlayersEliminated < 0 || p.LastRound < 0 {
			return false
		}
	}
	return true
}

func wellStructured(m collector.MatchRecord) bool {
	if m.Info.GameVersion == "" {
		return false
	}
	for _, p := range m.Info.Participants {
		if len(p.Units) == 0 && len(p.Traits) == 0 {
			return false
		}
	}
	return true
}
