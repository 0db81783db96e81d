// ABOUTME: Tests for the SQLite engine
// ABOUTME: Covers open, transactions, rollback, observers, sharing and close

package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inventory/internal/live"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(t.Context(), Options{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Tables: []Table{notesTable()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func insertNote(ctx context.Context, e *Engine, body string) (int64, error) {
	var id int64
	_, err := e.Mutate(ctx, "notes", func(ctx context.Context, tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES (?)", body)
		if err != nil {
			return 0, err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	return id, err
}

func countNotes(ctx context.Context, e *Engine) (int, error) {
	var n int
	err := e.Read(ctx, func(ctx context.Context, q Querier) error {
		return q.QueryRowContext(ctx, "SELECT COUNT(*) FROM notes").Scan(&n)
	})
	return n, err
}

func listBodies(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT body FROM notes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bodies := []string{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		bodies = append(bodies, body)
	}
	return bodies, rows.Err()
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	e, err := Open(t.Context(), Options{Path: dbPath, Tables: []Table{notesTable()}})
	require.NoError(t, err)
	defer e.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file was not created in nested directory")
	assert.Equal(t, DriverSQLite, e.Driver())
	assert.Equal(t, dbPath, e.Path())

	tb, ok := e.Table("notes")
	assert.True(t, ok)
	assert.Equal(t, "id", tb.PrimaryKey())
}

func TestOpen_InvalidOptions(t *testing.T) {
	ctx := t.Context()

	_, err := Open(ctx, Options{Driver: "postgres", Path: "x.db"})
	assert.ErrorContains(t, err, "unsupported sqlite driver")

	_, err = Open(ctx, Options{})
	assert.ErrorContains(t, err, "database path is required")

	_, err = Open(ctx, Options{Path: MemoryPath, Tables: []Table{{Name: "broken"}}})
	assert.ErrorContains(t, err, "at least one column")
}

func TestOpen_UnusablePathIsStorageUnavailable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0600))

	_, err := Open(t.Context(), Options{
		Path:   filepath.Join(blocker, "test.db"),
		Tables: []Table{notesTable()},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestOpen_MemoryDatabase(t *testing.T) {
	e, err := Open(t.Context(), Options{Path: MemoryPath, Tables: []Table{notesTable()}})
	require.NoError(t, err)
	defer e.Close()

	_, err = insertNote(t.Context(), e, "in memory")
	require.NoError(t, err)

	n, err := countNotes(t.Context(), e)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEngine_DataSurvivesReopen(t *testing.T) {
	ctx := t.Context()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	opts := Options{Path: dbPath, Tables: []Table{notesTable()}}

	e, err := Open(ctx, opts)
	require.NoError(t, err)
	_, err = insertNote(ctx, e, "durable")
	require.NoError(t, err)
	require.NoError(t, e.Close())

	e, err = Open(ctx, opts)
	require.NoError(t, err)
	defer e.Close()

	var bodies []string
	err = e.Read(ctx, func(ctx context.Context, q Querier) error {
		var err error
		bodies, err = listBodies(ctx, q)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"durable"}, bodies)
}

func TestMutate_UnknownTable(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Mutate(t.Context(), "missing", func(ctx context.Context, tx *sql.Tx) (int64, error) {
		return 0, nil
	})
	assert.ErrorContains(t, err, `unknown table "missing"`)
}

func TestMutate_ErrorRollsBack(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()

	_, err := insertNote(ctx, e, "kept")
	require.NoError(t, err)

	boom := errors.New("second statement failed")
	_, err = e.Mutate(ctx, "notes", func(ctx context.Context, tx *sql.Tx) (int64, error) {
		if _, err := tx.ExecContext(ctx, "INSERT INTO notes (body) VALUES ('partial')"); err != nil {
			return 0, err
		}
		return 0, boom
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	n, err := countNotes(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "failed mutation must leave the table unchanged")
}

func TestMutate_CancelledContextIsNotStorageFailure(t *testing.T) {
	e := newTestEngine(t)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := insertNote(ctx, e, "never")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)
}

func TestMutate_NotifiesOnlyWhenRowsChange(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()

	var changes []live.Change
	stop, err := e.Watch("notes", nil, func(c live.Change) { changes = append(changes, c) })
	require.NoError(t, err)
	defer stop()
	assert.Equal(t, 1, e.Observers("notes"))

	_, err = insertNote(ctx, e, "one")
	require.NoError(t, err)

	_, err = e.Mutate(ctx, "notes", func(ctx context.Context, tx *sql.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, "DELETE FROM notes WHERE id = 999")
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	})
	require.NoError(t, err)

	require.Len(t, changes, 1, "no-op mutation must not notify")
	assert.Equal(t, "notes", changes[0].Topic)
	assert.Equal(t, int64(1), changes[0].Rows)

	stop()
	assert.Equal(t, 0, e.Observers("notes"))
}

func TestWatch_InitFailureRegistersNothing(t *testing.T) {
	e := newTestEngine(t)
	boom := errors.New("init failed")

	stop, err := e.Watch("notes", func() error { return boom }, func(live.Change) {})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, stop)
	assert.Equal(t, 0, e.Observers("notes"))
}

func TestLive_EmitsCurrentThenEveryCommit(t *testing.T) {
	e := newTestEngine(t)
	ctx := t.Context()

	_, err := insertNote(ctx, e, "first")
	require.NoError(t, err)

	ch, sub, err := Live(e, "notes", listBodies).Chan(ctx)
	require.NoError(t, err)
	defer sub.Cancel()

	assert.Equal(t, []string{"first"}, <-ch)

	_, err = insertNote(ctx, e, "second")
	require.NoError(t, err)
	_, err = insertNote(ctx, e, "third")
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, <-ch)
	assert.Equal(t, []string{"first", "second", "third"}, <-ch)
}

func TestLive_FailsWhenEngineCloses(t *testing.T) {
	e, err := Open(t.Context(), Options{
		Path:   filepath.Join(t.TempDir(), "test.db"),
		Tables: []Table{notesTable()},
	})
	require.NoError(t, err)

	var values atomic.Int32
	sub, err := Live(e, "notes", listBodies).Subscribe(t.Context(), func([]string) { values.Add(1) })
	require.NoError(t, err)

	require.NoError(t, e.Close())

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("live query did not end when engine closed")
	}
	assert.ErrorIs(t, sub.Err(), ErrClosed)
	assert.ErrorIs(t, sub.Err(), ErrStorageUnavailable)
	assert.Equal(t, int32(1), values.Load())
}

func TestClose_OperationsFailAfterClose(t *testing.T) {
	e, err := Open(t.Context(), Options{Path: MemoryPath, Tables: []Table{notesTable()}})
	require.NoError(t, err)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close(), "second close is a no-op")

	_, err = insertNote(t.Context(), e, "late")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = countNotes(t.Context(), e)
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	_, err = Live(e, "notes", listBodies).Subscribe(t.Context(), func([]string) {})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenShared_SameLocationSameEngine(t *testing.T) {
	ctx := t.Context()
	dir := t.TempDir()
	opts := Options{Path: filepath.Join(dir, "shared.db"), Tables: []Table{notesTable()}}

	a, err := OpenShared(ctx, opts)
	require.NoError(t, err)
	b, err := OpenShared(ctx, opts)
	require.NoError(t, err)
	assert.Same(t, a, b)

	other, err := OpenShared(ctx, Options{Path: filepath.Join(dir, "other.db"), Tables: []Table{notesTable()}})
	require.NoError(t, err)
	defer other.Close()
	assert.NotSame(t, a, other)

	// Writes through one handle are seen by live queries on the other
	ch, sub, err := Live(b, "notes", listBodies).Chan(ctx)
	require.NoError(t, err)
	defer sub.Cancel()
	assert.Empty(t, <-ch)

	_, err = insertNote(ctx, a, "shared")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared"}, <-ch)

	// First close keeps the engine open for the remaining reference
	require.NoError(t, a.Close())
	_, err = insertNote(ctx, b, "still open")
	require.NoError(t, err)

	require.NoError(t, b.Close())
	_, err = insertNote(ctx, b, "closed")
	assert.ErrorIs(t, err, ErrClosed)

	// A closed engine leaves the registry
	c, err := OpenShared(ctx, opts)
	require.NoError(t, err)
	defer c.Close()
	assert.NotSame(t, a, c)
	n, err := countNotes(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUnavailable(t *testing.T) {
	assert.NoError(t, Unavailable("op", nil))

	driverErr := errors.New("disk I/O error")
	err := Unavailable("writing", driverErr)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, "writing: storage unavailable: disk I/O error", err.Error())

	err = Unavailable("reading", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrStorageUnavailable)

	err = Unavailable("outer", ErrClosed)
	assert.Equal(t, "outer: storage unavailable: engine closed", err.Error())
}
