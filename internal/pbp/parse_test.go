package pbp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/model"
)

var testGame = model.GameInfo{
	ID:           100,
	SeasonID:     5,
	HomeTeam:     1,
	VisitingTeam: 2,
	Status:       model.GameStatusFinal,
}

func TestParseGoal(t *testing.T) {
	ev := model.RawEvent{
		"event":             "goal",
		"id":                "9",
		"team_id":           "1",
		"home":              "1",
		"goal_player_id":    "31",
		"assist1_player_id": "32",
		"assist2_player_id": "",
		"period_id":         "OT1",
		"time":              "2:15",
		"time_formatted":    "02:15",
		"power_play":        "0",
		"empty_net":         "1",
		"scorer_goal_num":   "12",
		"goal_type":         "EV",
		"plus": []any{
			map[string]any{"player_id": "31", "team_id": "1", "jersey_number": "17"},
			map[string]any{"player_id": "", "team_id": "1"}, // dropped
		},
		"minus": []any{
			map[string]any{"player_id": "41", "team_id": "2", "jersey_number": "4"},
		},
	}

	g, err := parseGoal(ev, testGame, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "100_goal_9", g.ID)
	assert.Equal(t, 9, g.EventID)
	assert.Equal(t, 1, g.TeamID)
	assert.Equal(t, 2, g.OpponentTeamID)
	assert.True(t, g.Home)
	require.NotNil(t, g.GoalPlayerID)
	assert.Equal(t, 31, *g.GoalPlayerID)
	assert.Nil(t, g.Assist2PlayerID)
	assert.Equal(t, 4, g.Period) // OT1
	assert.Equal(t, 135, g.Seconds)
	assert.False(t, g.PowerPlay)
	assert.True(t, g.EmptyNet)

	require.Len(t, g.Plus, 1)
	assert.Equal(t, model.GoalAttribution{PlayerID: 31, TeamID: 1, JerseyNumber: 17}, g.Plus[0])
	require.Len(t, g.Minus, 1)
	assert.Equal(t, 41, g.Minus[0].PlayerID)
}

func TestParseGoal_MissingID(t *testing.T) {
	_, err := parseGoal(model.RawEvent{"event": "goal"}, testGame, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable feed id")
}

func TestParseShot(t *testing.T) {
	ev := model.RawEvent{
		"event":          "shot",
		"id":             "42",
		"player_id":      "31",
		"goalie_id":      "51",
		"player_team_id": "2",
		"home":           "0",
		"period_id":      "2",
		"time":           "5:10",
		"s":              "310",
		"quality":        "3",
		"game_goal_id":   "null",
	}

	s, err := parseShot(ev, testGame, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "100_shot_42", s.ID)
	assert.Equal(t, 2, s.TeamID) // player_team_id preferred
	assert.Equal(t, 1, s.OpponentTeamID)
	assert.False(t, s.Home)
	assert.Equal(t, 310, s.Seconds)
	assert.Equal(t, 3, s.Quality)
	assert.Nil(t, s.GameGoalID) // "null" marker means absence
}

func TestParseShot_FallsBackToClockForSeconds(t *testing.T) {
	ev := model.RawEvent{
		"event":   "shot",
		"id":      "42",
		"team_id": "1",
		"time":    "5:10",
	}
	s, err := parseShot(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 310, s.Seconds)
}

func TestParseFaceoff(t *testing.T) {
	ev := model.RawEvent{
		"event":             "faceoff",
		"period":            "1",
		"time":              "0:00",
		"home_player_id":    "11",
		"visitor_player_id": "21",
		"home_win":          "1",
		"win_team_id":       "1",
	}

	f, err := parseFaceoff(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "100_faceoff_1_0_11_21", f.ID)
	assert.True(t, f.HomeWin)
	assert.Equal(t, 1, f.WinTeamID)
	assert.Equal(t, 2, f.OpponentTeamID)
}

func TestParseFaceoff_NoParticipants(t *testing.T) {
	_, err := parseFaceoff(model.RawEvent{"event": "faceoff", "period": "1"}, testGame, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither participant")
}

func TestParseGoalieChange(t *testing.T) {
	ev := model.RawEvent{
		"event":         "goalie_change",
		"period_id":     "3",
		"time":          "19:02",
		"team_id":       "2",
		"team_code":     "tor",
		"goalie_in_id":  "",
		"goalie_out_id": "51",
	}

	gc, err := parseGoalieChange(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "100_goalie_3_1142_tor", gc.ID)
	assert.False(t, gc.Home)
	assert.Equal(t, 1, gc.OpponentTeamID)
	assert.Nil(t, gc.GoalieInID) // empty net, nobody came in
	require.NotNil(t, gc.GoalieOutID)
	assert.Equal(t, 51, *gc.GoalieOutID)
}

func TestParsePenalty_BenchPenaltyHasNoPlayer(t *testing.T) {
	ev := model.RawEvent{
		"event":             "penalty",
		"id":                "77",
		"player_id":         "0", // bench penalties carry player_id 0
		"player_served":     "33",
		"team_id":           "1",
		"home":              "1",
		"period_id":         "2",
		"minutes":           "2.0",
		"bench":             "1",
		"penalty_class":     "Minor",
		"lang_penalty_desc": "Too many players",
	}

	p, err := parsePenalty(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "100_penalty_77", p.ID)
	assert.Nil(t, p.PlayerID)
	require.NotNil(t, p.PlayerServed)
	assert.Equal(t, 33, *p.PlayerServed)
	assert.True(t, p.Bench)
	assert.Equal(t, 2.0, p.Minutes)
}

func TestParseShootout_AlwaysShootoutPeriod(t *testing.T) {
	ev := model.RawEvent{
		"event":        "shootout",
		"id":           "88",
		"player_id":    "31",
		"goalie_id":    "51",
		"team_id":      "2",
		"shot_order":   "3",
		"goal":         "1",
		"winning_goal": "1",
	}

	s, err := parseShootout(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 7, s.Period)
	assert.Equal(t, 3, s.ShotOrder)
	assert.True(t, s.Goal)
	assert.True(t, s.WinningGoal)
}

func TestParseBlockedShot(t *testing.T) {
	ev := model.RawEvent{
		"event":             "blocked_shot",
		"id":                "55",
		"player_id":         "31",
		"player_team_id":    "1",
		"blocker_player_id": "41",
		"blocker_team_id":   "2",
		"period_id":         "1",
		"seconds":           "802",
		"orientation":       "1",
	}

	b, err := parseBlockedShot(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "100_blocked_55", b.ID)
	assert.Equal(t, 802, b.Seconds)
	require.NotNil(t, b.BlockerPlayerID)
	assert.Equal(t, 41, *b.BlockerPlayerID)
	assert.Equal(t, 2, b.OpponentTeamID)
}

func TestParseHit(t *testing.T) {
	ev := model.RawEvent{
		"event":     "hit",
		"id":        "7",
		"player_id": "22",
		"team_id":   "2",
		"home":      "0",
		"period":    "1",
		"time":      "3:30",
		"hit_type":  "1",
	}

	h, err := parseHit(ev, testGame, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "100_hit_7", h.ID)
	assert.Equal(t, 22, h.PlayerID)
	assert.Equal(t, 210, h.Seconds)
	assert.Equal(t, 1, h.OpponentTeamID)
}
