package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
	"github.com/tft-collector/tftcollector/internal/checkpoint"
	"github.com/tft-collector/tftcollector/internal/notify"
	"github.com/tft-collector/tftcollector/internal/registry"
	"github.com/tft-collector/tftcollector/internal/riot"
	"github.com/tft-collector/tftcollector/internal/telemetry"
	"github.com/tft-collector/tftcollector/internal/window"
)

// ErrResumable is wrapped around the error returned by Run when the cycle
// stopped early but left a valid checkpoint behind (auth expiry, external
// cancellation). The CLI layer maps this to the design-default exit code 2.
var ErrResumable = errors.New("collection cycle interrupted, resumable from checkpoint")

// Config parameterizes one Engine run, covering the recognized options of
// §4.5 relevant to the core (region, tiers, mode, worker count, checkpoint
// cadence, incomplete-match policy).
type Config struct {
	CycleID               string
	Region                string
	Tiers                 []riot.Tier
	Mode                  window.Mode
	IncompleteMatchPolicy IncompleteMatchPolicy
	WorkerCount           int
	CheckpointEveryNMatches int
	MatchesPerPlayerQuery int
	DataVersion           string
	OutputDir             string
	PreviousWindowEnd     time.Time
}

// DefaultConfig fills in the design defaults not already fixed by the
// specification (worker count sized to the rate budget, 500-match
// checkpoint cadence, mark policy).
func DefaultConfig() Config {
	return Config{
		Mode:                    window.ModeWeekly,
		IncompleteMatchPolicy:   PolicyMark,
		WorkerCount:             8,
		CheckpointEveryNMatches: 500,
		MatchesPerPlayerQuery:   50,
		DataVersion:             "1.0.0",
		OutputDir:               "data/raw",
	}
}

// Engine is the Collection Engine core. One Engine instance handles exactly
// one cycle.
type Engine struct {
	client      *riot.Client
	reg         registry.Registry
	checkpoints *checkpoint.Store
	logger      *slog.Logger
	cfg         Config

	sm           *StateMachine
	errAccount   *tfterrors.Account
	mu           sync.Mutex
	players      map[string]PlayerRecord
	completedCnt int
	notifier     notify.Notifier
	startedAt    time.Time
}

// New constructs an Engine. Its notifier is a LogNotifier bound to the
// cycle-scoped logger; WithNotifier replaces it.
func New(client *riot.Client, reg registry.Registry, checkpoints *checkpoint.Store, logger *slog.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	scoped := logger.With("cycleId", cfg.CycleID)
	return &Engine{
		client:      client,
		reg:         reg,
		checkpoints: checkpoints,
		logger:      scoped,
		cfg:         cfg,
		sm:          NewStateMachine(),
		errAccount:  tfterrors.NewAccount(),
		players:     make(map[string]PlayerRecord),
		notifier:    notify.NewLogNotifier(scoped),
	}
}

// WithNotifier overrides the Engine's default log-based Notifier, e.g. to
// fan alerts out to an operator-supplied transport as well.
func (e *Engine) WithNotifier(n notify.Notifier) *Engine {
	e.notifier = n
	return e
}

// Run executes the full state machine for the configured cycle, returning
// the emitted Artifact on success. On ErrAuthExpired or context
// cancellation, Run checkpoints and returns an error wrapping ErrResumable.
func (e *Engine) Run(ctx context.Context) (*Artifact, error) {
	e.sm.OnTransition(func(from, to State) {
		e.logger.Info("state transition", "from", from, "to", to)
	})
	e.startedAt = time.Now()

	cursor := ""
	pendingMatches := make(map[string]bool)
	win, err := window.ForCycle(e.cfg.CycleID, e.cfg.Mode, e.cfg.PreviousWindowEnd)
	if err != nil {
		return nil, fmt.Errorf("collector: compute window: %w", err)
	}

	if snap, loadErr := e.checkpoints.Load(e.cfg.CycleID); loadErr == nil {
		e.logger.Info("resuming from checkpoint", "cursor", snap.CursorTierDivision, "matchesCollected", snap.MatchesCollected)
		cursor = snap.CursorTierDivision
		for _, p := range snap.ProcessedPlayers {
			e.players[p] = PlayerRecord{PUUID: p}
		}
		for _, m := range snap.PendingMatches {
			pendingMatches[m] = true
		}
		e.completedCnt = snap.MatchesCollected
		if !snap.WindowStart.IsZero() {
			win = window.Window{Start: snap.WindowStart, End: snap.WindowEnd}
		}
	} else if !errors.Is(loadErr, checkpoint.ErrNoCheckpoint) {
		return nil, fmt.Errorf("collector: load checkpoint: %w", loadErr)
	}

	e.sm.TransitionTo(StateDiscoverPlayers)
	if err := e.discoverPlayers(ctx, cursor); err != nil {
		return e.handleFatal(ctx, win, pendingMatches, cursor, err)
	}

	e.sm.TransitionTo(StateFetchMatchHistories)
	if err := e.fetchMatchHistories(ctx, win, pendingMatches); err != nil {
		return e.handleFatal(ctx, win, pendingMatches, "", err)
	}

	e.sm.TransitionTo(StateFetchMatchDetails)
	artifact := NewArtifact(CollectionInfo{
		Timestamp:             time.Now().UTC(),
		ExtractionLocation:    e.cfg.Region,
		DataVersion:           e.cfg.DataVersion,
		CollectionMethod:      CollectionMethod(e.cfg.Mode),
		IncompleteMatchPolicy: e.cfg.IncompleteMatchPolicy,
	})
	for puuid, rec := range e.players {
		artifact.Players[puuid] = rec
	}

	if err := e.fetchMatchDetails(ctx, win, pendingMatches, artifact); err != nil {
		return e.handleFatal(ctx, win, pendingMatches, "", err)
	}

	e.sm.TransitionTo(StateEmit)
	artifact.ErrorSummary = e.errAccount.Snapshot()
	if err := artifact.ValidateInvariants(); err != nil {
		e.logger.Error("invariant violation at emit, refusing to publish artifact", "error", err)
		return nil, err
	}
	if err := e.emit(artifact); err != nil {
		return nil, err
	}

	if err := e.checkpoints.Delete(e.cfg.CycleID); err != nil {
		e.logger.Warn("failed to delete checkpoint after successful cycle", "error", err)
	}
	e.sm.TransitionTo(StateDone)
	if e.notifier != nil {
		if err := e.notifier.Notify(ctx, notify.CycleComplete(e.cfg.CycleID, e.completedCnt, time.Since(e.startedAt))); err != nil {
			e.logger.Warn("cycle-complete notification failed", "error", err)
		}
	}
	return artifact, nil
}

// handleFatal is invoked when a stage returns an unrecoverable error
// (typically ErrAuthExpired, or ctx cancellation). It writes a checkpoint
// and returns an error wrapping ErrResumable, matching §4.4's failure
// handling contract.
func (e *Engine) handleFatal(ctx context.Context, win window.Window, pending map[string]bool, cursor string, cause error) (*Artifact, error) {
	e.sm.TransitionTo(StateCheckpoint)
	snap := e.snapshot(win, pending, cursor)
	if err := e.checkpoints.Save(snap); err != nil {
		e.logger.Error("failed to save checkpoint after fatal error", "error", err, "cause", cause)
	}
	e.sm.TransitionTo(StateAbortWithResumableState)
	if e.notifier != nil && errors.Is(cause, tfterrors.ErrAuthExpired) {
		if err := e.notifier.Notify(ctx, notify.AuthExpired(e.cfg.CycleID, e.completedCnt, time.Since(e.startedAt))); err != nil {
			e.logger.Warn("auth-expired notification failed", "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrResumable, cause)
}

func (e *Engine) snapshot(win window.Window, pending map[string]bool, cursor string) checkpoint.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	players := make([]string, 0, len(e.players))
	for p := range e.players {
		players = append(players, p)
	}
	pendingList := make([]string, 0, len(pending))
	for m := range pending {
		pendingList = append(pendingList, m)
	}
	return checkpoint.Snapshot{
		CycleID:            e.cfg.CycleID,
		CursorTierDivision: cursor,
		ProcessedPlayers:   players,
		PendingMatches:     pendingList,
		MatchesCollected:   e.completedCnt,
		WindowStart:        win.Start,
		WindowEnd:          win.End,
		ErrorSummary:       e.errAccount.Snapshot(),
	}
}

// discoverPlayers walks the ranked matrix from cursor (or the beginning),
// recording every discovered puuid into e.players.
func (e *Engine) discoverPlayers(ctx context.Context, cursor string) error {
	matrix := riot.ResumeFrom(riot.Matrix(e.cfg.Tiers), cursor)
	for _, bucket := range matrix {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		entries, err := e.fetchBucket(ctx, bucket)
		if err != nil {
			if errors.Is(err, tfterrors.ErrAuthExpired) {
				return err
			}
			e.recordFailure(err, "", "")
			continue
		}
		for _, entry := range entries {
			e.mu.Lock()
			e.players[entry.PUUID] = PlayerRecord{
				PUUID:        entry.PUUID,
				Tier:         entry.Tier,
				Rank:         entry.Rank,
				LeaguePoints: entry.LeaguePoints,
			}
			e.mu.Unlock()
			if err := e.reg.SeenPlayer(entry.PUUID, e.cfg.CycleID); err != nil {
				e.logger.Warn("registry seenPlayer failed", "puuid", entry.PUUID, "error", err)
			}
			if m := telemetry.Get(); m != nil {
				m.PlayersDiscovered.WithLabelValues(e.cfg.CycleID, e.cfg.Region, string(bucket.Tier)).Inc()
			}
		}
	}
	return nil
}

func (e *Engine) fetchBucket(ctx context.Context, bucket riot.Bucket) ([]riot.LeagueEntry, error) {
	if riot.IsApexTier(bucket.Tier) {
		league, err := e.client.GetApexLeague(ctx, bucket.Tier)
		if err != nil {
			return nil, err
		}
		return league.Entries, nil
	}
	return e.client.GetLeagueEntries(ctx, bucket.Tier, bucket.Division, 1)
}

// fetchMatchHistories requests each discovered player's time-bounded match
// list and claims every returned match-ID against the Registry, per §4.4
// stage 2.
func (e *Engine) fetchMatchHistories(ctx context.Context, win window.Window, pending map[string]bool) error {
	e.mu.Lock()
	puuids := make([]string, 0, len(e.players))
	for p := range e.players {
		puuids = append(puuids, p)
	}
	e.mu.Unlock()

	for _, puuid := range puuids {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ids, err := e.client.GetMatchHistory(ctx, puuid, win.StartSeconds(), win.EndSeconds(), e.cfg.MatchesPerPlayerQuery)
		if err != nil {
			if errors.Is(err, tfterrors.ErrAuthExpired) {
				return err
			}
			e.recordFailure(err, "", puuid)
			continue
		}
		for _, matchID := range ids {
			result, err := e.reg.Claim(matchID, e.cfg.CycleID)
			if err != nil {
				e.logger.Warn("registry claim failed", "matchId", matchID, "error", err)
				continue
			}
			if result == registry.Claimed {
				pending[matchID] = true
			}
			// SkipComplete and SkipInFlight both mean no detail request is
			// scheduled: SkipComplete is the status-aware dedup path.
		}
	}
	return nil
}

// fetchMatchDetails runs a bounded worker pool over the pending match-ID
// set, following the errgroup-with-semaphore pattern grounded on the
// teacher's producer/worker design in spider.go, generalized from a channel
// of jobs into an errgroup.SetLimit-bounded fan-out.
func (e *Engine) fetchMatchDetails(ctx context.Context, win window.Window, pending map[string]bool, artifact *Artifact) error {
	matchIDs := make([]string, 0, len(pending))
	for m := range pending {
		matchIDs = append(matchIDs, m)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.WorkerCount)

	var artifactMu sync.Mutex
	var authExpired error

	for _, matchID := range matchIDs {
		matchID := matchID
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			match, err := e.client.GetMatch(gctx, matchID)
			if err != nil {
				if errors.Is(err, tfterrors.ErrAuthExpired) {
					artifactMu.Lock()
					authExpired = err
					artifactMu.Unlock()
					return err
				}
				category := categoryForError(err)
				e.recordFailure(err, matchID, "")
				if regErr := e.reg.Fail(matchID, category); regErr != nil {
					e.logger.Warn("registry fail update failed", "matchId", matchID, "error", regErr)
				}
				return nil
			}

			if !win.Contains(match.Info.GameDatetime) {
				// Still complete the registry entry so a later cycle does
				// not re-fetch it, but exclude it from this artifact.
				if err := e.reg.Complete(matchID, e.cfg.CycleID); err != nil {
					e.logger.Warn("registry complete failed", "matchId", matchID, "error", err)
				}
				return nil
			}

			incomplete := len(match.Info.Participants) < riot.ExpectedParticipantCount
			if incomplete && e.cfg.IncompleteMatchPolicy == PolicyFilter {
				if err := e.reg.MarkIncomplete(matchID, e.cfg.CycleID); err != nil {
					e.logger.Warn("registry markIncomplete failed", "matchId", matchID, "error", err)
				}
				return nil
			}

			artifactMu.Lock()
			for _, p := range match.Info.Participants {
				if _, ok := artifact.Players[p.PUUID]; !ok {
					artifact.Players[p.PUUID] = PlayerRecord{PUUID: p.PUUID}
				}
			}
			artifact.Matches[matchID] = MatchRecord{
				MatchID:    matchID,
				Info:       match.Info,
				Incomplete: incomplete && e.cfg.IncompleteMatchPolicy == PolicyMark,
			}
			e.completedCnt++
			shouldCheckpoint := e.cfg.CheckpointEveryNMatches > 0 && e.completedCnt%e.cfg.CheckpointEveryNMatches == 0
			artifactMu.Unlock()

			if m := telemetry.Get(); m != nil {
				m.MatchesCollected.WithLabelValues(e.cfg.CycleID, e.cfg.Region).Inc()
			}

			if incomplete {
				if err := e.reg.MarkIncomplete(matchID, e.cfg.CycleID); err != nil {
					e.logger.Warn("registry markIncomplete failed", "matchId", matchID, "error", err)
				}
			} else if err := e.reg.Complete(matchID, e.cfg.CycleID); err != nil {
				e.logger.Warn("registry complete failed", "matchId", matchID, "error", err)
			}

			if shouldCheckpoint {
				snap := e.snapshot(win, pending, "")
				if err := e.checkpoints.Save(snap); err != nil {
					e.logger.Warn("periodic checkpoint save failed", "error", err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if authExpired != nil {
			return authExpired
		}
		return err
	}
	return nil
}

func categoryForError(err error) tfterrors.Category {
	var httpErr *tfterrors.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Category
	}
	return tfterrors.CategoryTransport
}

func (e *Engine) recordFailure(err error, matchID, puuid string) {
	category := categoryForError(err)
	if matchID != "" {
		e.errAccount.RecordMatch(category, matchID)
	}
	if puuid != "" {
		e.errAccount.RecordPlayer(category, puuid)
	}
	if matchID == "" && puuid == "" {
		e.errAccount.RecordMatch(category, "")
	}
	if m := telemetry.Get(); m != nil {
		m.ErrorsByCategory.WithLabelValues(string(category)).Inc()
		if matchID != "" {
			m.MatchesFailed.WithLabelValues(e.cfg.CycleID, e.cfg.Region).Inc()
		}
	}
}

// emit writes the artifact to its deterministic path (§6):
// data/raw/tft_collection_<cycleId>.json.
func (e *Engine) emit(artifact *Artifact) error {
	hash, err := artifact.ComputeContentHash()
	if err != nil {
		return fmt.Errorf("collector: compute content hash: %w", err)
	}
	artifact.CollectionInfo.ContentHash = hash

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("collector: create output dir: %w", err)
	}
	path := filepath.Join(e.cfg.OutputDir, fmt.Sprintf("tft_collection_%s.json", e.cfg.CycleID))
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("collector: marshal artifact: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("collector: write artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("collector: rename artifact into place: %w", err)
	}
	return nil
}
