package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/northpine/pwhl-sync/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it
// in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// pgMigration mirrors the SQLite schema with Postgres column types.
var pgMigration = func() string {
	ddl := sqliteMigration
	ddl = strings.ReplaceAll(ddl, "DATETIME", "TIMESTAMPTZ")
	ddl = strings.ReplaceAll(ddl, " REAL,", " DOUBLE PRECISION,")
	return ddl
}()

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, pgMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Game(ctx context.Context, gameID int) (*model.GameInfo, error) {
	var g model.GameInfo
	var seasonID, home, visiting, status *int
	err := s.pool.QueryRow(ctx,
		`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE id = $1`,
		gameID,
	).Scan(&g.ID, &seasonID, &home, &visiting, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: game %d not found", gameID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get game %d", gameID)
	}
	g.SeasonID = deref(seasonID)
	g.HomeTeam = deref(home)
	g.VisitingTeam = deref(visiting)
	g.Status = deref(status)
	return &g, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func (s *PostgresStore) GamesMissingPlayByPlay(ctx context.Context) ([]model.GameInfo, error) {
	query := strings.ReplaceAll(gamesMissingQuery, "?", "$1")
	rows, err := s.pool.Query(ctx, query, model.GameStatusFinal)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: games missing play-by-play")
	}
	defer rows.Close()
	return scanPgGames(rows)
}

func (s *PostgresStore) FinalGames(ctx context.Context) ([]model.GameInfo, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE status = $1 ORDER BY id`,
		model.GameStatusFinal,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: final games")
	}
	defer rows.Close()
	return scanPgGames(rows)
}

func scanPgGames(rows pgx.Rows) ([]model.GameInfo, error) {
	var games []model.GameInfo
	for rows.Next() {
		var g model.GameInfo
		var seasonID, home, visiting, status *int
		if err := rows.Scan(&g.ID, &seasonID, &home, &visiting, &status); err != nil {
			return nil, eris.Wrap(err, "scan game")
		}
		g.SeasonID = deref(seasonID)
		g.HomeTeam = deref(home)
		g.VisitingTeam = deref(visiting)
		g.Status = deref(status)
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *PostgresStore) WithGameTx(ctx context.Context, fn func(tx EventTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgEventTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit tx")
}

func (s *PostgresStore) EventCounts(ctx context.Context, gameID int) (map[string]int64, error) {
	counts := make(map[string]int64, len(EventTables))
	for _, table := range EventTables {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		args := []any{}
		if gameID != 0 {
			query += " WHERE game_id = $1"
			args = append(args, gameID)
		}
		var n int64
		if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "postgres: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *PostgresStore) StartSyncRun(ctx context.Context, runID, mode string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_log (id, mode, status, started_at) VALUES ($1, $2, 'running', $3)`,
		runID, mode, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: start sync run %s", runID)
}

func (s *PostgresStore) CompleteSyncRun(ctx context.Context, runID string, games, events int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_log SET status = 'complete', completed_at = $1, games = $2, events = $3 WHERE id = $4`,
		time.Now().UTC(), games, events, runID,
	)
	return eris.Wrapf(err, "postgres: complete sync run %s", runID)
}

func (s *PostgresStore) FailSyncRun(ctx context.Context, runID, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sync_log SET status = 'failed', completed_at = $1, error = $2 WHERE id = $3`,
		time.Now().UTC(), errMsg, runID,
	)
	return eris.Wrapf(err, "postgres: fail sync run %s", runID)
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, mode, status, started_at, completed_at, games, events, error
		 FROM sync_log ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		var errStr *string
		if err := rows.Scan(&r.ID, &r.Mode, &r.Status, &r.StartedAt, &r.CompletedAt, &r.Games, &r.Events, &errStr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		if errStr != nil {
			r.Error = *errStr
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// pgEventTx implements EventTx over one pgx transaction.
type pgEventTx struct {
	tx pgx.Tx
}

func (t *pgEventTx) Upsert(ctx context.Context, spec UpsertSpec) (UpsertOutcome, error) {
	if err := spec.validate(); err != nil {
		return Inserted, err
	}

	lookup, keyArgs := buildKeyLookup(dialectPostgres, spec)
	var existingID string
	err := t.tx.QueryRow(ctx, lookup, keyArgs...).Scan(&existingID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		insert, args := buildInsert(dialectPostgres, spec)
		if _, err := t.tx.Exec(ctx, insert, args...); err != nil {
			return Inserted, eris.Wrapf(err, "postgres: insert %s", spec.Table)
		}
		return Inserted, nil
	case err != nil:
		return Inserted, eris.Wrapf(err, "postgres: lookup %s by natural key", spec.Table)
	}

	update, args := buildUpdate(dialectPostgres, spec, existingID)
	if _, err := t.tx.Exec(ctx, update, args...); err != nil {
		return Updated, eris.Wrapf(err, "postgres: update %s %s", spec.Table, existingID)
	}
	return Updated, nil
}

func (t *pgEventTx) GoalExists(ctx context.Context, rowID string) (bool, error) {
	var one int
	err := t.tx.QueryRow(ctx, `SELECT 1 FROM pbp_goals WHERE id = $1`, rowID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: check goal %s", rowID)
	}
	return true, nil
}

func (t *pgEventTx) ReplaceGoalAttribution(ctx context.Context, goal *model.Goal) error {
	for _, table := range []string{"pbp_goals_plus", "pbp_goals_minus"} {
		if _, err := t.tx.Exec(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE goal_id = $1", table), goal.ID); err != nil {
			return eris.Wrapf(err, "postgres: clear %s for goal %s", table, goal.ID)
		}
	}

	insert := func(table, sign string, players []model.GoalAttribution) error {
		for _, p := range players {
			_, err := t.tx.Exec(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, goal_id, game_id, season_id, team_id, player_id, jersey_number)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`, table),
				fmt.Sprintf("%s_%s_%d", goal.ID, sign, p.PlayerID),
				goal.ID, goal.GameID, goal.SeasonID, p.TeamID, p.PlayerID, p.JerseyNumber,
			)
			if err != nil {
				return eris.Wrapf(err, "postgres: insert %s for goal %s", table, goal.ID)
			}
		}
		return nil
	}

	if err := insert("pbp_goals_plus", "plus", goal.Plus); err != nil {
		return err
	}
	return insert("pbp_goals_minus", "minus", goal.Minus)
}
