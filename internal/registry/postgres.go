package registry

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	tfterrors "github.com/tft-collector/tftcollector/internal/errors"
)

// Postgres is the shared-registry backend for deployments running multiple
// collector processes against one region, following the
// ON CONFLICT ... DO NOTHING / DO UPDATE idempotency pattern of the
// teacher's internal/db/queries.go InsertMatch, generalized to the
// identifiers(match_id PK, status, first_seen_cycle, completed_cycle,
// last_error_category) table §6 names as the canonical registry layout.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and ensures the identifiers and
// players tables exist.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("registry: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}
	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS identifiers (
			match_id VARCHAR PRIMARY KEY,
			status VARCHAR NOT NULL,
			first_seen_cycle VARCHAR NOT NULL,
			completed_cycle VARCHAR,
			last_error_category VARCHAR
		);
		CREATE TABLE IF NOT EXISTS registry_players (
			puuid VARCHAR PRIMARY KEY,
			last_seen_cycle VARCHAR NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("registry: migrate: %w", err)
	}
	return nil
}

// Status implements Registry.
func (p *Postgres) Status(matchID string) (Status, error) {
	ctx := context.Background()
	var status string
	err := p.pool.QueryRow(ctx, `SELECT status FROM identifiers WHERE match_id = $1`, matchID).Scan(&status)
	if err != nil {
		return StatusUnseen, nil
	}
	return Status(status), nil
}

// Claim implements Registry's atomic claim using an upsert that only
// transitions rows not already COMPLETE or IN_PROGRESS. The `prior` CTE
// reads the pre-upsert status from the same snapshot the upsert itself
// reads from, so it reflects the row exactly as it stood before this
// call — the only way to tell "this call just claimed it" apart from
// "another process already had it IN_PROGRESS", both of which land on
// resultStatus = IN_PROGRESS.
func (p *Postgres) Claim(matchID, cycleID string) (ClaimResult, error) {
	ctx := context.Background()
	var resultStatus string
	var priorStatus *string
	err := p.pool.QueryRow(ctx, `
		WITH prior AS (
			SELECT status FROM identifiers WHERE match_id = $1
		), upsert AS (
			INSERT INTO identifiers (match_id, status, first_seen_cycle)
			VALUES ($1, 'IN_PROGRESS', $2)
			ON CONFLICT (match_id) DO UPDATE SET
				status = CASE
					WHEN identifiers.status IN ('COMPLETE', 'IN_PROGRESS') THEN identifiers.status
					ELSE 'IN_PROGRESS'
				END
			RETURNING status
		)
		SELECT upsert.status, prior.status FROM upsert LEFT JOIN prior ON true
	`, matchID, cycleID).Scan(&resultStatus, &priorStatus)
	if err != nil {
		return "", fmt.Errorf("registry: claim: %w", err)
	}

	switch Status(resultStatus) {
	case StatusComplete:
		return SkipComplete, nil
	case StatusInProgress:
		if priorStatus != nil && Status(*priorStatus) == StatusInProgress {
			return SkipInFlight, nil
		}
		return Claimed, nil
	default:
		return Claimed, nil
	}
}

// Complete implements Registry.
func (p *Postgres) Complete(matchID, cycleID string) error {
	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `
		UPDATE identifiers SET status = 'COMPLETE', completed_cycle = $2
		WHERE match_id = $1
	`, matchID, cycleID)
	if err != nil {
		return fmt.Errorf("registry: complete: %w", err)
	}
	return nil
}

// Fail implements Registry, never overwriting a COMPLETE row.
func (p *Postgres) Fail(matchID string, category tfterrors.Category) error {
	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `
		UPDATE identifiers SET
			status = CASE WHEN status = 'COMPLETE' THEN status ELSE 'FAILED' END,
			last_error_category = $2
		WHERE match_id = $1
	`, matchID, string(category))
	if err != nil {
		return fmt.Errorf("registry: fail: %w", err)
	}
	return nil
}

// MarkIncomplete implements Registry, never overwriting a COMPLETE row.
func (p *Postgres) MarkIncomplete(matchID, cycleID string) error {
	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO identifiers (match_id, status, first_seen_cycle)
		VALUES ($1, 'INCOMPLETE', $2)
		ON CONFLICT (match_id) DO UPDATE SET
			status = CASE WHEN identifiers.status = 'COMPLETE' THEN identifiers.status ELSE 'INCOMPLETE' END
	`, matchID, cycleID)
	if err != nil {
		return fmt.Errorf("registry: mark incomplete: %w", err)
	}
	return nil
}

// SeenPlayer implements Registry.
func (p *Postgres) SeenPlayer(puuid, cycleID string) error {
	ctx := context.Background()
	_, err := p.pool.Exec(ctx, `
		INSERT INTO registry_players (puuid, last_seen_cycle) VALUES ($1, $2)
		ON CONFLICT (puuid) DO UPDATE SET last_seen_cycle = EXCLUDED.last_seen_cycle
	`, puuid, cycleID)
	if err != nil {
		return fmt.Errorf("registry: seen player: %w", err)
	}
	return nil
}

// LastSeenCycle implements Registry.
func (p *Postgres) LastSeenCycle(puuid string) (string, bool, error) {
	ctx := context.Background()
	var cycle string
	err := p.pool.QueryRow(ctx, `SELECT last_seen_cycle FROM registry_players WHERE puuid = $1`, puuid).Scan(&cycle)
	if err != nil {
		return "", false, nil
	}
	return cycle, true, nil
}

// Close implements Registry.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
