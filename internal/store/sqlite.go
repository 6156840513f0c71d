package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/northpine/pwhl-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// The games table is owned by the schedule sync; it is created here only so
// a fresh database is usable, and never altered.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS games (
	id                  INTEGER PRIMARY KEY,
	season_id           INTEGER,
	game_number         INTEGER,
	date                TEXT,
	home_team           INTEGER,
	visiting_team       INTEGER,
	home_goal_count     INTEGER,
	visiting_goal_count INTEGER,
	periods             INTEGER,
	overtime            BOOLEAN,
	shootout            BOOLEAN,
	status              INTEGER,
	game_status         TEXT,
	venue_name          TEXT,
	venue_location      TEXT,
	attendance          INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_goalie_changes (
	id               TEXT PRIMARY KEY,
	game_id          INTEGER,
	season_id        INTEGER,
	period           INTEGER,
	time             TEXT,
	seconds          INTEGER,
	team_id          INTEGER,
	opponent_team_id INTEGER,
	home             BOOLEAN,
	goalie_in_id     INTEGER,
	goalie_out_id    INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_faceoffs (
	id                TEXT PRIMARY KEY,
	game_id           INTEGER,
	season_id         INTEGER,
	period            INTEGER,
	time              TEXT,
	time_formatted    TEXT,
	seconds           INTEGER,
	home_player_id    INTEGER,
	visitor_player_id INTEGER,
	home_win          BOOLEAN,
	win_team_id       INTEGER,
	opponent_team_id  INTEGER,
	x_location        INTEGER,
	y_location        INTEGER,
	location_id       INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_hits (
	id               TEXT PRIMARY KEY,
	event_id         INTEGER,
	game_id          INTEGER,
	season_id        INTEGER,
	period           INTEGER,
	time             TEXT,
	time_formatted   TEXT,
	seconds          INTEGER,
	player_id        INTEGER,
	team_id          INTEGER,
	opponent_team_id INTEGER,
	home             BOOLEAN,
	x_location       INTEGER,
	y_location       INTEGER,
	hit_type         INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_shots (
	id                       TEXT PRIMARY KEY,
	event_id                 INTEGER,
	game_id                  INTEGER,
	season_id                INTEGER,
	player_id                INTEGER,
	goalie_id                INTEGER,
	team_id                  INTEGER,
	opponent_team_id         INTEGER,
	home                     BOOLEAN,
	period                   INTEGER,
	time                     TEXT,
	time_formatted           TEXT,
	seconds                  INTEGER,
	x_location               INTEGER,
	y_location               INTEGER,
	shot_type                INTEGER,
	shot_type_description    TEXT,
	quality                  INTEGER,
	shot_quality_description TEXT,
	game_goal_id             INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_blocked_shots (
	id                       TEXT PRIMARY KEY,
	event_id                 INTEGER,
	game_id                  INTEGER,
	season_id                INTEGER,
	player_id                INTEGER,
	goalie_id                INTEGER,
	team_id                  INTEGER,
	opponent_team_id         INTEGER,
	blocker_player_id        INTEGER,
	blocker_team_id          INTEGER,
	home                     BOOLEAN,
	period                   INTEGER,
	time                     TEXT,
	time_formatted           TEXT,
	seconds                  INTEGER,
	x_location               INTEGER,
	y_location               INTEGER,
	orientation              INTEGER,
	shot_type                INTEGER,
	shot_type_description    TEXT,
	quality                  INTEGER,
	shot_quality_description TEXT
);

CREATE TABLE IF NOT EXISTS pbp_goals (
	id                TEXT PRIMARY KEY,
	event_id          INTEGER,
	game_id           INTEGER,
	season_id         INTEGER,
	team_id           INTEGER,
	opponent_team_id  INTEGER,
	home              BOOLEAN,
	goal_player_id    INTEGER,
	assist1_player_id INTEGER,
	assist2_player_id INTEGER,
	period            INTEGER,
	time              TEXT,
	time_formatted    TEXT,
	seconds           INTEGER,
	x_location        INTEGER,
	y_location        INTEGER,
	location_set      BOOLEAN,
	power_play        BOOLEAN,
	empty_net         BOOLEAN,
	penalty_shot      BOOLEAN,
	short_handed      BOOLEAN,
	insurance_goal    BOOLEAN,
	game_winning      BOOLEAN,
	game_tieing       BOOLEAN,
	scorer_goal_num   INTEGER,
	goal_type         TEXT
);

CREATE TABLE IF NOT EXISTS pbp_goals_plus (
	id            TEXT PRIMARY KEY,
	goal_id       TEXT,
	game_id       INTEGER,
	season_id     INTEGER,
	team_id       INTEGER,
	player_id     INTEGER,
	jersey_number INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_goals_minus (
	id            TEXT PRIMARY KEY,
	goal_id       TEXT,
	game_id       INTEGER,
	season_id     INTEGER,
	team_id       INTEGER,
	player_id     INTEGER,
	jersey_number INTEGER
);

CREATE TABLE IF NOT EXISTS pbp_penalties (
	id                       TEXT PRIMARY KEY,
	event_id                 INTEGER,
	game_id                  INTEGER,
	season_id                INTEGER,
	player_id                INTEGER,
	player_served            INTEGER,
	team_id                  INTEGER,
	opponent_team_id         INTEGER,
	home                     BOOLEAN,
	period                   INTEGER,
	time_off_formatted       TEXT,
	minutes                  REAL,
	minutes_formatted        TEXT,
	bench                    BOOLEAN,
	penalty_shot             BOOLEAN,
	pp                       BOOLEAN,
	offence                  INTEGER,
	penalty_class_id         INTEGER,
	penalty_class            TEXT,
	lang_penalty_description TEXT
);

CREATE TABLE IF NOT EXISTS pbp_shootouts (
	id               TEXT PRIMARY KEY,
	event_id         INTEGER,
	game_id          INTEGER,
	season_id        INTEGER,
	player_id        INTEGER,
	goalie_id        INTEGER,
	team_id          INTEGER,
	opponent_team_id INTEGER,
	home             BOOLEAN,
	period           INTEGER,
	time             TEXT,
	shot_order       INTEGER,
	goal             BOOLEAN,
	winning_goal     BOOLEAN,
	seconds          INTEGER
);

CREATE TABLE IF NOT EXISTS sync_log (
	id           TEXT PRIMARY KEY,
	mode         TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	games        INTEGER NOT NULL DEFAULT 0,
	events       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_pbp_goalie_changes_game ON pbp_goalie_changes(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_faceoffs_game ON pbp_faceoffs(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_hits_game ON pbp_hits(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_shots_game ON pbp_shots(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_blocked_shots_game ON pbp_blocked_shots(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_goals_game ON pbp_goals(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_goals_plus_goal ON pbp_goals_plus(goal_id);
CREATE INDEX IF NOT EXISTS idx_pbp_goals_minus_goal ON pbp_goals_minus(goal_id);
CREATE INDEX IF NOT EXISTS idx_pbp_penalties_game ON pbp_penalties(game_id);
CREATE INDEX IF NOT EXISTS idx_pbp_shootouts_game ON pbp_shootouts(game_id);
CREATE INDEX IF NOT EXISTS idx_sync_log_started ON sync_log(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Game(ctx context.Context, gameID int) (*model.GameInfo, error) {
	var g model.GameInfo
	var seasonID, home, visiting, status sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE id = ?`,
		gameID,
	).Scan(&g.ID, &seasonID, &home, &visiting, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: game %d not found", gameID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get game %d", gameID)
	}
	g.SeasonID = int(seasonID.Int64)
	g.HomeTeam = int(home.Int64)
	g.VisitingTeam = int(visiting.Int64)
	g.Status = int(status.Int64)
	return &g, nil
}

// gamesMissingQuery selects final games with no rows in any event table.
const gamesMissingQuery = `
SELECT g.id, g.season_id, g.home_team, g.visiting_team, g.status
FROM games g
LEFT JOIN (
	SELECT DISTINCT game_id FROM pbp_faceoffs
	UNION SELECT DISTINCT game_id FROM pbp_shots
	UNION SELECT DISTINCT game_id FROM pbp_goals
	UNION SELECT DISTINCT game_id FROM pbp_hits
	UNION SELECT DISTINCT game_id FROM pbp_penalties
	UNION SELECT DISTINCT game_id FROM pbp_blocked_shots
	UNION SELECT DISTINCT game_id FROM pbp_goalie_changes
	UNION SELECT DISTINCT game_id FROM pbp_shootouts
) pbp ON g.id = pbp.game_id
WHERE pbp.game_id IS NULL AND g.status = ?
ORDER BY g.id`

func (s *SQLiteStore) GamesMissingPlayByPlay(ctx context.Context) ([]model.GameInfo, error) {
	rows, err := s.db.QueryContext(ctx, gamesMissingQuery, model.GameStatusFinal)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: games missing play-by-play")
	}
	defer rows.Close()
	return scanGames(rows)
}

func (s *SQLiteStore) FinalGames(ctx context.Context) ([]model.GameInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, season_id, home_team, visiting_team, status FROM games WHERE status = ? ORDER BY id`,
		model.GameStatusFinal,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: final games")
	}
	defer rows.Close()
	return scanGames(rows)
}

func scanGames(rows *sql.Rows) ([]model.GameInfo, error) {
	var games []model.GameInfo
	for rows.Next() {
		var g model.GameInfo
		var seasonID, home, visiting, status sql.NullInt64
		if err := rows.Scan(&g.ID, &seasonID, &home, &visiting, &status); err != nil {
			return nil, eris.Wrap(err, "scan game")
		}
		g.SeasonID = int(seasonID.Int64)
		g.HomeTeam = int(home.Int64)
		g.VisitingTeam = int(visiting.Int64)
		g.Status = int(status.Int64)
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *SQLiteStore) WithGameTx(ctx context.Context, fn func(tx EventTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteEventTx{tx: tx}); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) EventCounts(ctx context.Context, gameID int) (map[string]int64, error) {
	counts := make(map[string]int64, len(EventTables))
	for _, table := range EventTables {
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		args := []any{}
		if gameID != 0 {
			query += " WHERE game_id = ?"
			args = append(args, gameID)
		}
		var n int64
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "sqlite: count %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func (s *SQLiteStore) StartSyncRun(ctx context.Context, runID, mode string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (id, mode, status, started_at) VALUES (?, ?, 'running', ?)`,
		runID, mode, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: start sync run %s", runID)
}

func (s *SQLiteStore) CompleteSyncRun(ctx context.Context, runID string, games, events int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = 'complete', completed_at = ?, games = ?, events = ? WHERE id = ?`,
		time.Now().UTC(), games, events, runID,
	)
	return eris.Wrapf(err, "sqlite: complete sync run %s", runID)
}

func (s *SQLiteStore) FailSyncRun(ctx context.Context, runID, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_log SET status = 'failed', completed_at = ?, error = ? WHERE id = ?`,
		time.Now().UTC(), errMsg, runID,
	)
	return eris.Wrapf(err, "sqlite: fail sync run %s", runID)
}

func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, status, started_at, completed_at, games, events, error
		 FROM sync_log ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var r SyncRun
		var completed sql.NullTime
		var errStr sql.NullString
		if err := rows.Scan(&r.ID, &r.Mode, &r.Status, &r.StartedAt, &completed, &r.Games, &r.Events, &errStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync run")
		}
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		r.Error = errStr.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// sqliteEventTx implements EventTx over one database/sql transaction.
type sqliteEventTx struct {
	tx *sql.Tx
}

func (t *sqliteEventTx) Upsert(ctx context.Context, spec UpsertSpec) (UpsertOutcome, error) {
	if err := spec.validate(); err != nil {
		return Inserted, err
	}

	lookup, keyArgs := buildKeyLookup(dialectSQLite, spec)
	var existingID string
	err := t.tx.QueryRowContext(ctx, lookup, keyArgs...).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		insert, args := buildInsert(dialectSQLite, spec)
		if _, err := t.tx.ExecContext(ctx, insert, args...); err != nil {
			return Inserted, eris.Wrapf(err, "sqlite: insert %s", spec.Table)
		}
		return Inserted, nil
	case err != nil:
		return Inserted, eris.Wrapf(err, "sqlite: lookup %s by natural key", spec.Table)
	}

	update, args := buildUpdate(dialectSQLite, spec, existingID)
	if _, err := t.tx.ExecContext(ctx, update, args...); err != nil {
		return Updated, eris.Wrapf(err, "sqlite: update %s %s", spec.Table, existingID)
	}
	return Updated, nil
}

func (t *sqliteEventTx) GoalExists(ctx context.Context, rowID string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `SELECT 1 FROM pbp_goals WHERE id = ?`, rowID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: check goal %s", rowID)
	}
	return true, nil
}

func (t *sqliteEventTx) ReplaceGoalAttribution(ctx context.Context, goal *model.Goal) error {
	for _, table := range []string{"pbp_goals_plus", "pbp_goals_minus"} {
		if _, err := t.tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE goal_id = ?", table), goal.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s for goal %s", table, goal.ID)
		}
	}

	insert := func(table, sign string, players []model.GoalAttribution) error {
		for _, p := range players {
			_, err := t.tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (id, goal_id, game_id, season_id, team_id, player_id, jersey_number)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`, table),
				fmt.Sprintf("%s_%s_%d", goal.ID, sign, p.PlayerID),
				goal.ID, goal.GameID, goal.SeasonID, p.TeamID, p.PlayerID, p.JerseyNumber,
			)
			if err != nil {
				return eris.Wrapf(err, "sqlite: insert %s for goal %s", table, goal.ID)
			}
		}
		return nil
	}

	if err := insert("pbp_goals_plus", "plus", goal.Plus); err != nil {
		return err
	}
	return insert("pbp_goals_minus", "minus", goal.Minus)
}
