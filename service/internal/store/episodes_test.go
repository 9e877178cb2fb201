package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements and replays canned results.
type fakeDB struct {
	calls   []execCall
	tag     string
	execErr error
	row     fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag(f.tag), f.execErr
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return f.row
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *int:
			*p = r.vals[i].(int)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		case **time.Time:
			*p = r.vals[i].(*time.Time)
		}
	}
	return nil
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewEpisodes(db).Migrate(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS episodes")
}

func TestStart(t *testing.T) {
	db := &fakeDB{tag: "INSERT 0 1"}
	ep := Episode{ID: uuid.New(), Worker: "w1", Players: 4, MaxPlayers: 6, StartedAt: time.Unix(100, 0)}
	require.NoError(t, NewEpisodes(db).Start(context.Background(), ep))

	require.Len(t, db.calls, 1)
	assert.True(t, strings.HasPrefix(db.calls[0].sql, "INSERT INTO episodes"))
	assert.Equal(t, []any{ep.ID, "w1", 4, 6, ep.StartedAt}, db.calls[0].args)
}

func TestStartWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	db := &fakeDB{execErr: boom}
	err := NewEpisodes(db).Start(context.Background(), Episode{ID: uuid.New()})
	assert.ErrorIs(t, err, boom)
}

func TestFinish(t *testing.T) {
	id := uuid.New()
	at := time.Unix(200, 0)

	db := &fakeDB{tag: "UPDATE 1"}
	require.NoError(t, NewEpisodes(db).Finish(context.Background(), id, 120, at))
	assert.Equal(t, []any{id, at, 120}, db.calls[0].args)

	missing := &fakeDB{tag: "UPDATE 0"}
	err := NewEpisodes(missing).Finish(context.Background(), id, 1, at)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet(t *testing.T) {
	id := uuid.New()
	started := time.Unix(300, 0)
	finished := time.Unix(400, 0)
	db := &fakeDB{row: fakeRow{vals: []any{"w2", 2, 6, started, &finished, 57}}}

	ep, err := NewEpisodes(db).Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, Episode{ID: id, Worker: "w2", Players: 2, MaxPlayers: 6, StartedAt: started, FinishedAt: &finished, Steps: 57}, ep)

	none := &fakeDB{row: fakeRow{err: pgx.ErrNoRows}}
	_, err = NewEpisodes(none).Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}
