package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northpine/pwhl-sync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Game_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE id = \$1`).
		WithArgs(999).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Game(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Game(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	season, home, visiting, status := 5, 1, 2, model.GameStatusFinal
	mock.ExpectQuery(`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE id = \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows([]string{"id", "season_id", "home_team", "visiting_team", "status"}).
			AddRow(100, &season, &home, &visiting, &status))

	g, err := s.Game(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 100, g.ID)
	assert.Equal(t, 1, g.HomeTeam)
	assert.True(t, g.Final())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_InsertBranch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM pbp_hits WHERE game_id = \$1 AND event_id = \$2`).
		WithArgs(100, 7).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`INSERT INTO pbp_hits`).
		WithArgs("100_hit_7", 7, 100, 1).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.WithGameTx(context.Background(), func(tx EventTx) error {
		out, err := tx.Upsert(context.Background(), UpsertSpec{
			Table:   "pbp_hits",
			KeyCols: []string{"game_id", "event_id"},
			KeyVals: []any{100, 7},
			Cols:    []string{"id", "event_id", "game_id", "period"},
			Vals:    []any{"100_hit_7", 7, 100, 1},
		})
		require.NoError(t, err)
		assert.Equal(t, Inserted, out)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Upsert_UpdateBranch(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM pbp_hits WHERE game_id = \$1 AND event_id = \$2`).
		WithArgs(100, 7).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("100_hit_7"))
	mock.ExpectExec(`UPDATE pbp_hits SET period = \$1 WHERE id = \$2`).
		WithArgs(2, "100_hit_7").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.WithGameTx(context.Background(), func(tx EventTx) error {
		out, err := tx.Upsert(context.Background(), UpsertSpec{
			Table:   "pbp_hits",
			KeyCols: []string{"game_id", "event_id"},
			KeyVals: []any{100, 7},
			Cols:    []string{"id", "event_id", "game_id", "period"},
			Vals:    []any{"100_hit_7", 7, 100, 2},
		})
		require.NoError(t, err)
		assert.Equal(t, Updated, out)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WithGameTx_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := s.WithGameTx(context.Background(), func(tx EventTx) error {
		return assert.AnError
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SyncRunBookkeeping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sync_log`).
		WithArgs("run-1", "batch", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE sync_log SET status = 'complete'`).
		WithArgs(pgxmock.AnyArg(), int64(3), int64(412), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	require.NoError(t, s.StartSyncRun(ctx, "run-1", "batch"))
	require.NoError(t, s.CompleteSyncRun(ctx, "run-1", 3, 412))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSyncRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	completed := started.Add(2 * time.Minute)
	errMsg := "feed unavailable"
	mock.ExpectQuery(`SELECT id, mode, status, started_at, completed_at, games, events, error`).
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "mode", "status", "started_at", "completed_at", "games", "events", "error"}).
			AddRow("run-2", "single", "failed", started, &completed, int64(0), int64(0), &errMsg).
			AddRow("run-1", "batch", "complete", started, &completed, int64(3), int64(412), (*string)(nil)))

	runs, err := s.ListSyncRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "feed unavailable", runs[0].Error)
	assert.Equal(t, "", runs[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}
