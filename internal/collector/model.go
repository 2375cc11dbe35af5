// Package collector implements the Collection Engine: the orchestrator core
// that walks the ranked tier/division matrix, discovers players, fetches
// match histories and details, deduplicates against the Registry, filters
// by time window, and emits a single canonical CollectionArtifact.
//
// The state machine and worker-pool concurrency model are grounded on the
// teacher's internal/collector/continuous.go and spider.go (producer/worker
// pool, sentinel auth-expiry handling), generalized from a League of Legends
// spider into the tier/division-matrix walk this specification's Collection
// Engine performs, and from an indefinite multi-day crawl into a single
// resumable cycle.
package collector

import (
	"fmt"
	"time"

	"github.com/tft-collector/tftcollector/internal/errors"
	"github.com/tft-collector/tftcollector/internal/identity"
	"github.com/tft-collector/tftcollector/internal/riot"
)

// IncompleteMatchPolicy is one of the three recognized policies for matches
// with fewer than the expected participant count.
type IncompleteMatchPolicy string

const (
	PolicyIdentify IncompleteMatchPolicy = "identify"
	PolicyFilter   IncompleteMatchPolicy = "filter"
	PolicyMark     IncompleteMatchPolicy = "mark"
)

// CollectionMethod records which time-window mode produced the artifact.
type CollectionMethod string

const (
	MethodDaily       CollectionMethod = "daily"
	MethodWeekly      CollectionMethod = "weekly"
	MethodIncremental CollectionMethod = "incremental"
)

// PlayerRecord is the artifact's per-puuid player entry (§3 Player).
type PlayerRecord struct {
	PUUID        string `json:"puuid"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank,omitempty"`
	LeaguePoints int    `json:"leaguePoints"`
}

// MatchRecord is the artifact's per-matchId match entry.
type MatchRecord struct {
	MatchID   string          `json:"matchId"`
	Info      riot.MatchInfo  `json:"info"`
	Incomplete bool           `json:"incomplete,omitempty"`
}

// CollectionInfo is the artifact's header, matching §6's excerpt exactly,
// plus ContentHash: the §4.2 canonical identifier stamped onto the artifact
// at EMIT time so a downstream consumer can verify byte-for-byte that two
// copies of the same cycle carry identical player/match content regardless
// of how each was serialized.
type CollectionInfo struct {
	Timestamp             time.Time             `json:"timestamp"`
	ExtractionLocation    string                `json:"extractionLocation"`
	DataVersion           string                `json:"dataVersion"`
	CollectionMethod      CollectionMethod      `json:"collectionMethod"`
	IncompleteMatchPolicy IncompleteMatchPolicy `json:"incompleteMatchPolicy"`
	ContentHash           string                `json:"contentHash,omitempty"`
}

// Artifact is the Collection Engine's sole authoritative output, the
// CollectionArtifact of §3/§6.
type Artifact struct {
	Context        map[string]string       `json:"@context"`
	Type           string                  `json:"@type"`
	CollectionInfo CollectionInfo          `json:"collectionInfo"`
	Players        map[string]PlayerRecord `json:"players"`
	Matches        map[string]MatchRecord  `json:"matches"`
	Leaderboards   map[string]interface{}  `json:"leaderboards,omitempty"`
	ErrorSummary   errors.Summary          `json:"error_summary"`
}

// NewArtifact constructs an empty artifact with the fixed @context/@type
// envelope and the given header fields.
func NewArtifact(info CollectionInfo) *Artifact {
	return &Artifact{
		Context: map[string]string{
			"tft":  "https://tftcollector.example/schema#",
			"prov": "http://www.w3.org/ns/prov#",
		},
		Type:           "TFTDataCollection",
		CollectionInfo: info,
		Players:        make(map[string]PlayerRecord),
		Matches:        make(map[string]MatchRecord),
	}
}

// ValidateInvariants checks the three structural invariants of §3 that the
// EMIT stage must never violate: every participant's puuid resolves to a
// player entry, placements within a match form a duplicate-free subset of
// 1..8, and (checked by the caller via the time window applied before
// insertion) every included match's game_datetime lies in the cycle window.
// A violation is fatal for EMIT per §7's INVARIANT_VIOLATION category and
// must prevent the artifact from being written to disk.
func (a *Artifact) ValidateInvariants() error {
	for matchID, m := range a.Matches {
		seenPlacements := make(map[int]bool)
		for _, p := range m.Info.Participants {
			if _, ok := a.Players[p.PUUID]; !ok {
				return fmt.Errorf("%w: match %s participant puuid %s not present in players", errors.ErrInvariantViolation, matchID, p.PUUID)
			}
			if p.Placement < 1 || p.Placement > riot.ExpectedParticipantCount {
				return fmt.Errorf("%w: match %s participant %s has out-of-range placement %d", errors.ErrInvariantViolation, matchID, p.PUUID, p.Placement)
			}
			if seenPlacements[p.Placement] {
				return fmt.Errorf("%w: match %s has duplicate placement %d", errors.ErrInvariantViolation, matchID, p.Placement)
			}
			seenPlacements[p.Placement] = true
		}
	}
	return nil
}

// ComputeContentHash returns the §4.2 canonical identifier for the
// artifact's content: the SHA-256 of the canonical-JSON form of its
// players/matches maps. Only the content, not the header (timestamp,
// content hash itself), participates, so two cycles collecting the same
// players and matches at different times hash identically.
func (a *Artifact) ComputeContentHash() (string, error) {
	content := struct {
		Players map[string]PlayerRecord `json:"players"`
		Matches map[string]MatchRecord  `json:"matches"`
	}{Players: a.Players, Matches: a.Matches}
	return identity.Hash(content)
}
