package pbp

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/model"
)

// Parsing happens once, at the classification boundary; untyped RawEvent
// maps never travel past this file. A missing natural-key field makes the
// single event malformed and skippable, never the whole game.

func eventID(ev model.RawEvent) (int, error) {
	id, ok := intValue(ev["id"])
	if !ok {
		return 0, eris.Errorf("event %q has no usable feed id", ev.Type())
	}
	return id, nil
}

func parseGoalieChange(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.GoalieChange, error) {
	period := PeriodNumber(ev["period_id"])
	clock := Str(ev["time"])
	seconds := IntOr(ev["s"], ClockSeconds(clock))
	teamID := Int(ev["team_id"])

	return &model.GoalieChange{
		ID:             model.GoalieChangeRowID(game.ID, period, seconds, Str(ev["team_code"])),
		GameID:         game.ID,
		SeasonID:       game.SeasonID,
		Period:         period,
		Time:           clock,
		Seconds:        seconds,
		TeamID:         teamID,
		OpponentTeamID: ResolveOpponent(ev["team_id"], game, log),
		Home:           teamID == game.HomeTeam,
		GoalieInID:     OptID(ev["goalie_in_id"]),
		GoalieOutID:    OptID(ev["goalie_out_id"]),
	}, nil
}

func parseFaceoff(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Faceoff, error) {
	period := PeriodNumber(ev["period"])
	clock := Str(ev["time"])
	seconds := IntOr(ev["s"], ClockSeconds(clock))
	homePlayer := Int(ev["home_player_id"])
	visitorPlayer := Int(ev["visitor_player_id"])
	if homePlayer == 0 && visitorPlayer == 0 {
		return nil, eris.New("faceoff has neither participant id")
	}

	return &model.Faceoff{
		ID:              model.FaceoffRowID(game.ID, period, seconds, homePlayer, visitorPlayer),
		GameID:          game.ID,
		SeasonID:        game.SeasonID,
		Period:          period,
		Time:            clock,
		TimeFormatted:   Str(ev["time_formatted"]),
		Seconds:         seconds,
		HomePlayerID:    homePlayer,
		VisitorPlayerID: visitorPlayer,
		HomeWin:         Flag(ev["home_win"]),
		WinTeamID:       Int(ev["win_team_id"]),
		OpponentTeamID:  ResolveOpponent(ev["win_team_id"], game, log),
		XLocation:       Int(ev["x_location"]),
		YLocation:       Int(ev["y_location"]),
		LocationID:      Int(ev["location_id"]),
	}, nil
}

func parseHit(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Hit, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	teamID := Int(ev["team_id"])
	return &model.Hit{
		ID:             model.HitRowID(game.ID, id),
		EventID:        id,
		GameID:         game.ID,
		SeasonID:       game.SeasonID,
		Period:         PeriodNumber(ev["period"]),
		Time:           Str(ev["time"]),
		TimeFormatted:  Str(ev["time_formatted"]),
		Seconds:        IntOr(ev["s"], ClockSeconds(Str(ev["time"]))),
		PlayerID:       Int(ev["player_id"]),
		TeamID:         teamID,
		OpponentTeamID: ResolveOpponent(ev["team_id"], game, log),
		Home:           Flag(ev["home"]),
		XLocation:      Int(ev["x_location"]),
		YLocation:      Int(ev["y_location"]),
		HitType:        Int(ev["hit_type"]),
	}, nil
}

func parseShot(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Shot, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	// The shooting team arrives under player_team_id on the verbose tab and
	// team_id elsewhere; prefer the more specific name.
	rawTeam, _ := ev.Field("player_team_id", "team_id")

	return &model.Shot{
		ID:                     model.ShotRowID(game.ID, id),
		EventID:                id,
		GameID:                 game.ID,
		SeasonID:               game.SeasonID,
		PlayerID:               OptID(ev["player_id"]),
		GoalieID:               OptID(ev["goalie_id"]),
		TeamID:                 Int(rawTeam),
		OpponentTeamID:         ResolveOpponent(rawTeam, game, log),
		Home:                   Flag(ev["home"]),
		Period:                 PeriodNumber(ev["period_id"]),
		Time:                   Str(ev["time"]),
		TimeFormatted:          Str(ev["time_formatted"]),
		Seconds:                IntOr(ev["s"], ClockSeconds(Str(ev["time"]))),
		XLocation:              Int(ev["x_location"]),
		YLocation:              Int(ev["y_location"]),
		ShotType:               Int(ev["shot_type"]),
		ShotTypeDescription:    Str(ev["shot_type_description"]),
		Quality:                Int(ev["quality"]),
		ShotQualityDescription: Str(ev["shot_quality_description"]),
		GameGoalID:             OptID(ev["game_goal_id"]),
	}, nil
}

func parseBlockedShot(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.BlockedShot, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	rawTeam, _ := ev.Field("player_team_id", "team_id")
	rawSeconds, _ := ev.Field("seconds", "s")

	return &model.BlockedShot{
		ID:                     model.BlockedShotRowID(game.ID, id),
		EventID:                id,
		GameID:                 game.ID,
		SeasonID:               game.SeasonID,
		PlayerID:               OptID(ev["player_id"]),
		GoalieID:               OptID(ev["goalie_id"]),
		TeamID:                 Int(rawTeam),
		OpponentTeamID:         ResolveOpponent(rawTeam, game, log),
		BlockerPlayerID:        OptID(ev["blocker_player_id"]),
		BlockerTeamID:          OptID(ev["blocker_team_id"]),
		Home:                   Flag(ev["home"]),
		Period:                 PeriodNumber(ev["period_id"]),
		Time:                   Str(ev["time"]),
		TimeFormatted:          Str(ev["time_formatted"]),
		Seconds:                IntOr(rawSeconds, ClockSeconds(Str(ev["time"]))),
		XLocation:              Int(ev["x_location"]),
		YLocation:              Int(ev["y_location"]),
		Orientation:            Int(ev["orientation"]),
		ShotType:               Int(ev["shot_type"]),
		ShotTypeDescription:    Str(ev["shot_type_description"]),
		Quality:                Int(ev["quality"]),
		ShotQualityDescription: Str(ev["shot_quality_description"]),
	}, nil
}

func parseGoal(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Goal, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	return &model.Goal{
		ID:              model.GoalRowID(game.ID, id),
		EventID:         id,
		GameID:          game.ID,
		SeasonID:        game.SeasonID,
		TeamID:          Int(ev["team_id"]),
		OpponentTeamID:  ResolveOpponent(ev["team_id"], game, log),
		Home:            Flag(ev["home"]),
		GoalPlayerID:    OptID(ev["goal_player_id"]),
		Assist1PlayerID: OptID(ev["assist1_player_id"]),
		Assist2PlayerID: OptID(ev["assist2_player_id"]),
		Period:          PeriodNumber(ev["period_id"]),
		Time:            Str(ev["time"]),
		TimeFormatted:   Str(ev["time_formatted"]),
		Seconds:         IntOr(ev["s"], ClockSeconds(Str(ev["time"]))),
		XLocation:       Int(ev["x_location"]),
		YLocation:       Int(ev["y_location"]),
		LocationSet:     Flag(ev["location_set"]),
		PowerPlay:       Flag(ev["power_play"]),
		EmptyNet:        Flag(ev["empty_net"]),
		PenaltyShot:     Flag(ev["penalty_shot"]),
		ShortHanded:     Flag(ev["short_handed"]),
		InsuranceGoal:   Flag(ev["insurance_goal"]),
		GameWinning:     Flag(ev["game_winning"]),
		GameTieing:      Flag(ev["game_tieing"]),
		ScorerGoalNum:   Int(ev["scorer_goal_num"]),
		GoalType:        Str(ev["goal_type"]),
		Plus:            parseAttribution(ev["plus"]),
		Minus:           parseAttribution(ev["minus"]),
	}, nil
}

// parseAttribution decodes the plus/minus roster lists attached to a goal.
// Entries without a player id are dropped.
func parseAttribution(v any) []model.GoalAttribution {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []model.GoalAttribution
	for _, entry := range list {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		playerID := Int(fields["player_id"])
		if playerID == 0 {
			continue
		}
		out = append(out, model.GoalAttribution{
			PlayerID:     playerID,
			TeamID:       Int(fields["team_id"]),
			JerseyNumber: Int(fields["jersey_number"]),
		})
	}
	return out
}

func parsePenalty(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Penalty, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	return &model.Penalty{
		ID:                     model.PenaltyRowID(game.ID, id),
		EventID:                id,
		GameID:                 game.ID,
		SeasonID:               game.SeasonID,
		PlayerID:               OptIDNonZero(ev["player_id"]),
		PlayerServed:           OptID(ev["player_served"]),
		TeamID:                 Int(ev["team_id"]),
		OpponentTeamID:         ResolveOpponent(ev["team_id"], game, log),
		Home:                   Flag(ev["home"]),
		Period:                 PeriodNumber(ev["period_id"]),
		TimeOffFormatted:       Str(ev["time_off_formatted"]),
		Minutes:                Float(ev["minutes"]),
		MinutesFormatted:       Str(ev["minutes_formatted"]),
		Bench:                  Flag(ev["bench"]),
		PenaltyShot:            Flag(ev["penalty_shot"]),
		PP:                     Flag(ev["pp"]),
		Offence:                Int(ev["offence"]),
		PenaltyClassID:         Int(ev["penalty_class_id"]),
		PenaltyClass:           Str(ev["penalty_class"]),
		LangPenaltyDescription: Str(ev["lang_penalty_description"]),
	}, nil
}

func parseShootout(ev model.RawEvent, game model.GameInfo, log *zap.Logger) (*model.Shootout, error) {
	id, err := eventID(ev)
	if err != nil {
		return nil, err
	}

	return &model.Shootout{
		ID:             model.ShootoutRowID(game.ID, id),
		EventID:        id,
		GameID:         game.ID,
		SeasonID:       game.SeasonID,
		PlayerID:       OptID(ev["player_id"]),
		GoalieID:       OptID(ev["goalie_id"]),
		TeamID:         Int(ev["team_id"]),
		OpponentTeamID: ResolveOpponent(ev["team_id"], game, log),
		Home:           Flag(ev["home"]),
		Period:         7, // shootouts are always the SO period
		Time:           Str(ev["time"]),
		ShotOrder:      Int(ev["shot_order"]),
		Goal:           Flag(ev["goal"]),
		WinningGoal:    Flag(ev["winning_goal"]),
		Seconds:        Int(ev["s"]),
	}, nil
}
