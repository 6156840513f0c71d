package pbp

import (
	"context"

	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/store"
)

// Each reconciler maps one typed event onto an UpsertSpec and writes it
// through the transaction. The natural key decides update-vs-insert; the
// synthesized string id is carried along but never consulted for the
// decision. Events with a stable feed id key on (game_id, event_id); goalie
// changes and faceoffs have no feed id and key on their position in the game.

func reconcileGoalieChange(ctx context.Context, tx store.EventTx, gc *model.GoalieChange) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_goalie_changes",
		KeyCols: []string{"game_id", "period", "seconds", "team_id"},
		KeyVals: []any{gc.GameID, gc.Period, gc.Seconds, gc.TeamID},
		Cols: []string{
			"id", "game_id", "season_id", "period", "time", "seconds",
			"team_id", "opponent_team_id", "home", "goalie_in_id", "goalie_out_id",
		},
		Vals: []any{
			gc.ID, gc.GameID, gc.SeasonID, gc.Period, gc.Time, gc.Seconds,
			gc.TeamID, gc.OpponentTeamID, gc.Home, gc.GoalieInID, gc.GoalieOutID,
		},
	})
	return err
}

func reconcileFaceoff(ctx context.Context, tx store.EventTx, f *model.Faceoff) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_faceoffs",
		KeyCols: []string{"game_id", "period", "seconds", "home_player_id", "visitor_player_id"},
		KeyVals: []any{f.GameID, f.Period, f.Seconds, f.HomePlayerID, f.VisitorPlayerID},
		Cols: []string{
			"id", "game_id", "season_id", "period", "time", "time_formatted", "seconds",
			"home_player_id", "visitor_player_id", "home_win", "win_team_id",
			"opponent_team_id", "x_location", "y_location", "location_id",
		},
		Vals: []any{
			f.ID, f.GameID, f.SeasonID, f.Period, f.Time, f.TimeFormatted, f.Seconds,
			f.HomePlayerID, f.VisitorPlayerID, f.HomeWin, f.WinTeamID,
			f.OpponentTeamID, f.XLocation, f.YLocation, f.LocationID,
		},
	})
	return err
}

func reconcileHit(ctx context.Context, tx store.EventTx, h *model.Hit) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_hits",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{h.GameID, h.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "period", "time", "time_formatted",
			"seconds", "player_id", "team_id", "opponent_team_id", "home",
			"x_location", "y_location", "hit_type",
		},
		Vals: []any{
			h.ID, h.EventID, h.GameID, h.SeasonID, h.Period, h.Time, h.TimeFormatted,
			h.Seconds, h.PlayerID, h.TeamID, h.OpponentTeamID, h.Home,
			h.XLocation, h.YLocation, h.HitType,
		},
	})
	return err
}

// reconcileShot validates the goal back-reference before persisting: a
// game_goal_id that does not resolve to a goal row in the same game is stored
// as absent rather than dangling. Goals are reconciled first, so at this
// point every goal the feed knows about is already visible in-transaction.
func reconcileShot(ctx context.Context, tx store.EventTx, s *model.Shot, log *zap.Logger) error {
	if s.GameGoalID != nil {
		ok, err := tx.GoalExists(ctx, model.GoalRowID(s.GameID, *s.GameGoalID))
		if err != nil {
			return err
		}
		if !ok {
			log.Warn("shot references unknown goal, clearing reference",
				zap.Int("game_id", s.GameID),
				zap.Int("event_id", s.EventID),
				zap.Int("game_goal_id", *s.GameGoalID))
			s.GameGoalID = nil
		}
	}

	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_shots",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{s.GameID, s.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "player_id", "goalie_id",
			"team_id", "opponent_team_id", "home", "period", "time", "time_formatted",
			"seconds", "x_location", "y_location", "shot_type", "shot_type_description",
			"quality", "shot_quality_description", "game_goal_id",
		},
		Vals: []any{
			s.ID, s.EventID, s.GameID, s.SeasonID, s.PlayerID, s.GoalieID,
			s.TeamID, s.OpponentTeamID, s.Home, s.Period, s.Time, s.TimeFormatted,
			s.Seconds, s.XLocation, s.YLocation, s.ShotType, s.ShotTypeDescription,
			s.Quality, s.ShotQualityDescription, s.GameGoalID,
		},
	})
	return err
}

func reconcileBlockedShot(ctx context.Context, tx store.EventTx, b *model.BlockedShot) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_blocked_shots",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{b.GameID, b.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "player_id", "goalie_id",
			"team_id", "opponent_team_id", "blocker_player_id", "blocker_team_id",
			"home", "period", "time", "time_formatted", "seconds",
			"x_location", "y_location", "orientation", "shot_type",
			"shot_type_description", "quality", "shot_quality_description",
		},
		Vals: []any{
			b.ID, b.EventID, b.GameID, b.SeasonID, b.PlayerID, b.GoalieID,
			b.TeamID, b.OpponentTeamID, b.BlockerPlayerID, b.BlockerTeamID,
			b.Home, b.Period, b.Time, b.TimeFormatted, b.Seconds,
			b.XLocation, b.YLocation, b.Orientation, b.ShotType,
			b.ShotTypeDescription, b.Quality, b.ShotQualityDescription,
		},
	})
	return err
}

// reconcileGoal persists the goal row and then replaces its plus/minus
// attribution wholesale. A corrected roster never leaves stale credits
// behind.
func reconcileGoal(ctx context.Context, tx store.EventTx, g *model.Goal) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_goals",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{g.GameID, g.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "team_id", "opponent_team_id",
			"home", "goal_player_id", "assist1_player_id", "assist2_player_id",
			"period", "time", "time_formatted", "seconds", "x_location", "y_location",
			"location_set", "power_play", "empty_net", "penalty_shot", "short_handed",
			"insurance_goal", "game_winning", "game_tieing", "scorer_goal_num", "goal_type",
		},
		Vals: []any{
			g.ID, g.EventID, g.GameID, g.SeasonID, g.TeamID, g.OpponentTeamID,
			g.Home, g.GoalPlayerID, g.Assist1PlayerID, g.Assist2PlayerID,
			g.Period, g.Time, g.TimeFormatted, g.Seconds, g.XLocation, g.YLocation,
			g.LocationSet, g.PowerPlay, g.EmptyNet, g.PenaltyShot, g.ShortHanded,
			g.InsuranceGoal, g.GameWinning, g.GameTieing, g.ScorerGoalNum, g.GoalType,
		},
	})
	if err != nil {
		return err
	}
	return tx.ReplaceGoalAttribution(ctx, g)
}

func reconcilePenalty(ctx context.Context, tx store.EventTx, p *model.Penalty) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_penalties",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{p.GameID, p.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "player_id", "player_served",
			"team_id", "opponent_team_id", "home", "period", "time_off_formatted",
			"minutes", "minutes_formatted", "bench", "penalty_shot", "pp",
			"offence", "penalty_class_id", "penalty_class", "lang_penalty_description",
		},
		Vals: []any{
			p.ID, p.EventID, p.GameID, p.SeasonID, p.PlayerID, p.PlayerServed,
			p.TeamID, p.OpponentTeamID, p.Home, p.Period, p.TimeOffFormatted,
			p.Minutes, p.MinutesFormatted, p.Bench, p.PenaltyShot, p.PP,
			p.Offence, p.PenaltyClassID, p.PenaltyClass, p.LangPenaltyDescription,
		},
	})
	return err
}

func reconcileShootout(ctx context.Context, tx store.EventTx, s *model.Shootout) error {
	_, err := tx.Upsert(ctx, store.UpsertSpec{
		Table:   "pbp_shootouts",
		KeyCols: []string{"game_id", "event_id"},
		KeyVals: []any{s.GameID, s.EventID},
		Cols: []string{
			"id", "event_id", "game_id", "season_id", "player_id", "goalie_id",
			"team_id", "opponent_team_id", "home", "period", "time",
			"shot_order", "goal", "winning_goal", "seconds",
		},
		Vals: []any{
			s.ID, s.EventID, s.GameID, s.SeasonID, s.PlayerID, s.GoalieID,
			s.TeamID, s.OpponentTeamID, s.Home, s.Period, s.Time,
			s.ShotOrder, s.Goal, s.WinningGoal, s.Seconds,
		},
	})
	return err
}
