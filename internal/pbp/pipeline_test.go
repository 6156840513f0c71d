package pbp

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/store"
)

// testStore is a migrated SQLite store plus a raw handle for assertions.
type testStore struct {
	*store.SQLiteStore
	raw *sql.DB
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := store.NewSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() }) //nolint:errcheck

	return &testStore{SQLiteStore: st, raw: raw}
}

func (ts *testStore) insertGame(t *testing.T, id, home, visiting, status int) {
	t.Helper()
	_, err := ts.raw.Exec(
		`INSERT INTO games (id, season_id, home_team, visiting_team, status) VALUES (?, ?, ?, ?, ?)`,
		id, 5, home, visiting, status,
	)
	require.NoError(t, err)
}

// game100Events is a compact but representative feed: a goal, a shot that
// produced it, a shot referencing a goal the feed never delivered, a hit,
// a faceoff, a malformed hit with no id, and an unknown narrative row.
func game100Events() []model.RawEvent {
	return []model.RawEvent{
		{"event": "faceoff", "period": "1", "time": "0:00",
			"home_player_id": "11", "visitor_player_id": "21",
			"home_win": "1", "win_team_id": "1"},
		{"event": "shot", "id": "8", "player_id": "31", "player_team_id": "1",
			"home": "1", "period_id": "1", "time": "4:02", "game_goal_id": "9"},
		{"event": "goal", "id": "9", "team_id": "1", "home": "1",
			"goal_player_id": "31", "period_id": "1", "time": "4:02",
			"plus":  []any{map[string]any{"player_id": "31", "team_id": "1", "jersey_number": "17"}},
			"minus": []any{map[string]any{"player_id": "41", "team_id": "2", "jersey_number": "4"}}},
		{"event": "shot", "id": "10", "player_id": "22", "player_team_id": "2",
			"home": "0", "period_id": "2", "time": "10:00", "game_goal_id": "99"},
		{"event": "hit", "id": "12", "player_id": "22", "team_id": "2",
			"period": "2", "time": "11:30"},
		{"event": "hit"}, // no feed id: malformed, skipped
		{"event": "period_start", "period": "1"},
	}
}

func reconcileOnce(t *testing.T, ts *testStore, game model.GameInfo, events []model.RawEvent) *GameResult {
	t.Helper()
	var res *GameResult
	err := ts.WithGameTx(context.Background(), func(tx store.EventTx) error {
		var err error
		res, err = ReconcileGame(context.Background(), tx, game, events, zap.NewNop())
		return err
	})
	require.NoError(t, err)
	return res
}

func TestReconcileGame(t *testing.T) {
	ts := newTestStore(t)
	game := model.GameInfo{ID: 100, SeasonID: 5, HomeTeam: 1, VisitingTeam: 2, Status: model.GameStatusFinal}

	res := reconcileOnce(t, ts, game, game100Events())

	assert.Equal(t, 1, res.Counts[model.EventGoal])
	assert.Equal(t, 2, res.Counts[model.EventShot])
	assert.Equal(t, 1, res.Counts[model.EventHit])
	assert.Equal(t, 1, res.Counts[model.EventFaceoff])
	assert.Equal(t, 1, res.Skipped) // the hit with no id
	assert.EqualValues(t, 5, res.Events())

	// Shot 8 keeps its goal reference; shot 10's dangling reference is
	// stored as absent.
	var ref sql.NullInt64
	require.NoError(t, ts.raw.QueryRow(`SELECT game_goal_id FROM pbp_shots WHERE id = '100_shot_8'`).Scan(&ref))
	require.True(t, ref.Valid)
	assert.EqualValues(t, 9, ref.Int64)
	require.NoError(t, ts.raw.QueryRow(`SELECT game_goal_id FROM pbp_shots WHERE id = '100_shot_10'`).Scan(&ref))
	assert.False(t, ref.Valid)

	var plus int64
	require.NoError(t, ts.raw.QueryRow(`SELECT COUNT(*) FROM pbp_goals_plus WHERE goal_id = '100_goal_9'`).Scan(&plus))
	assert.EqualValues(t, 1, plus)
}

func TestReconcileGame_Idempotent(t *testing.T) {
	ts := newTestStore(t)
	game := model.GameInfo{ID: 100, SeasonID: 5, HomeTeam: 1, VisitingTeam: 2, Status: model.GameStatusFinal}

	first := reconcileOnce(t, ts, game, game100Events())
	second := reconcileOnce(t, ts, game, game100Events())
	assert.Equal(t, first.Counts, second.Counts)

	counts, err := ts.EventCounts(context.Background(), 100)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts["pbp_goals"])
	assert.EqualValues(t, 2, counts["pbp_shots"])
	assert.EqualValues(t, 1, counts["pbp_hits"])
	assert.EqualValues(t, 1, counts["pbp_faceoffs"])
}

func TestReconcileGame_CorrectedFeedUpdatesInPlace(t *testing.T) {
	ts := newTestStore(t)
	game := model.GameInfo{ID: 100, SeasonID: 5, HomeTeam: 1, VisitingTeam: 2, Status: model.GameStatusFinal}

	reconcileOnce(t, ts, game, game100Events())

	// The stats crew reassigns the goal and trims the plus list.
	corrected := game100Events()
	corrected[2]["goal_player_id"] = "32"
	corrected[2]["plus"] = []any{map[string]any{"player_id": "32", "team_id": "1", "jersey_number": "8"}}
	reconcileOnce(t, ts, game, corrected)

	var scorer int
	require.NoError(t, ts.raw.QueryRow(`SELECT goal_player_id FROM pbp_goals WHERE id = '100_goal_9'`).Scan(&scorer))
	assert.Equal(t, 32, scorer)

	var goals, plus int64
	require.NoError(t, ts.raw.QueryRow(`SELECT COUNT(*) FROM pbp_goals WHERE game_id = 100`).Scan(&goals))
	require.NoError(t, ts.raw.QueryRow(`SELECT COUNT(*) FROM pbp_goals_plus WHERE goal_id = '100_goal_9'`).Scan(&plus))
	assert.EqualValues(t, 1, goals)
	assert.EqualValues(t, 1, plus)

	var plusPlayer int
	require.NoError(t, ts.raw.QueryRow(`SELECT player_id FROM pbp_goals_plus WHERE goal_id = '100_goal_9'`).Scan(&plusPlayer))
	assert.Equal(t, 32, plusPlayer)
}

func TestReconcileGame_GoalsBeforeShotsRegardlessOfFeedOrder(t *testing.T) {
	ts := newTestStore(t)
	game := model.GameInfo{ID: 200, SeasonID: 5, HomeTeam: 1, VisitingTeam: 2, Status: model.GameStatusFinal}

	// The shot precedes its goal in feed order; the reference must still
	// resolve because goals reconcile first.
	events := []model.RawEvent{
		{"event": "shot", "id": "1", "player_team_id": "1", "period_id": "1",
			"time": "1:00", "game_goal_id": "2"},
		{"event": "goal", "id": "2", "team_id": "1", "period_id": "1", "time": "1:00"},
	}
	reconcileOnce(t, ts, game, events)

	var ref sql.NullInt64
	require.NoError(t, ts.raw.QueryRow(`SELECT game_goal_id FROM pbp_shots WHERE id = '200_shot_1'`).Scan(&ref))
	require.True(t, ref.Valid)
	assert.EqualValues(t, 2, ref.Int64)
}
