// internal/store/episodes.go — Postgres ledger of encoded episodes.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when an episode id has no ledger row.
var ErrNotFound = errors.New("episode not found")

// DB is the subset of pgxpool.Pool the ledger uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Episode is one ledger row.
type Episode struct {
	ID         uuid.UUID
	Worker     string
	Players    int
	MaxPlayers int
	StartedAt  time.Time
	FinishedAt *time.Time
	Steps      int
}

const schema = `
CREATE TABLE IF NOT EXISTS episodes (
	id          UUID PRIMARY KEY,
	worker      TEXT NOT NULL,
	players     SMALLINT NOT NULL,
	max_players SMALLINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	steps       INTEGER NOT NULL DEFAULT 0
)`

// Episodes records episode lifecycles.
type Episodes struct {
	db DB
}

// NewEpisodes wraps db.
func NewEpisodes(db DB) *Episodes { return &Episodes{db: db} }

// Open connects a pool to url and verifies the connection.
func Open(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the ledger table if needed.
func (e *Episodes) Migrate(ctx context.Context) error {
	if _, err := e.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate episodes: %w", err)
	}
	return nil
}

// Start inserts a row for a newly reset episode.
func (e *Episodes) Start(ctx context.Context, ep Episode) error {
	_, err := e.db.Exec(ctx,
		`INSERT INTO episodes (id, worker, players, max_players, started_at) VALUES ($1, $2, $3, $4, $5)`,
		ep.ID, ep.Worker, ep.Players, ep.MaxPlayers, ep.StartedAt)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", ep.ID, err)
	}
	return nil
}

// Finish stamps the end time and final step count.
func (e *Episodes) Finish(ctx context.Context, id uuid.UUID, steps int, at time.Time) error {
	tag, err := e.db.Exec(ctx,
		`UPDATE episodes SET finished_at = $2, steps = $3 WHERE id = $1`,
		id, at, steps)
	if err != nil {
		return fmt.Errorf("finish episode %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish episode %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get loads one episode.
func (e *Episodes) Get(ctx context.Context, id uuid.UUID) (Episode, error) {
	ep := Episode{ID: id}
	err := e.db.QueryRow(ctx,
		`SELECT worker, players, max_players, started_at, finished_at, steps FROM episodes WHERE id = $1`, id,
	).Scan(&ep.Worker, &ep.Players, &ep.MaxPlayers, &ep.StartedAt, &ep.FinishedAt, &ep.Steps)
	if errors.Is(err, pgx.ErrNoRows) {
		return Episode{}, fmt.Errorf("episode %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Episode{}, fmt.Errorf("load episode %s: %w", id, err)
	}
	return ep, nil
}
