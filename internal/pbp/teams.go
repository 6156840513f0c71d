package pbp

import (
	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/model"
)

// ResolveOpponent maps an event's raw team identifier onto the game's
// home/visiting pair and returns the opposing team id.
//
// The fallback when the id matches neither side is deliberate and lossy: the
// caller-supplied team id is kept as-is and the opponent defaults to the
// visiting team. A mismatched team id is a feed anomaly, not a reason to
// drop the event.
func ResolveOpponent(rawTeamID any, game model.GameInfo, log *zap.Logger) int {
	teamID, ok := intValue(rawTeamID)
	if ok {
		switch teamID {
		case game.HomeTeam:
			return game.VisitingTeam
		case game.VisitingTeam:
			return game.HomeTeam
		}
	}

	log.Warn("team id matches neither home nor visiting team",
		zap.Any("team_id", rawTeamID),
		zap.Int("home_team", game.HomeTeam),
		zap.Int("visiting_team", game.VisitingTeam),
	)
	return game.VisitingTeam
}
