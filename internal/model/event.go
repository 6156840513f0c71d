// Package model holds the domain types shared by the feed client, the
// reconcilers, and the store.
package model

import "fmt"

// EventType is the feed's type tag for a play-by-play event.
type EventType string

const (
	EventGoalieChange EventType = "goalie_change"
	EventFaceoff      EventType = "faceoff"
	EventHit          EventType = "hit"
	EventShot         EventType = "shot"
	EventBlockedShot  EventType = "blocked_shot"
	EventGoal         EventType = "goal"
	EventPenalty      EventType = "penalty"
	EventShootout     EventType = "shootout"
)

// EventTypes lists all known event types in a stable order.
var EventTypes = []EventType{
	EventGoalieChange,
	EventFaceoff,
	EventHit,
	EventShot,
	EventBlockedShot,
	EventGoal,
	EventPenalty,
	EventShootout,
}

// RawEvent is one untyped record from the play-by-play feed: a type tag plus
// loosely-typed fields (strings, numbers, nulls, nested lists). It is
// transient; it never travels past the classification boundary.
type RawEvent map[string]any

// Type returns the event's type tag, or "" when absent.
func (e RawEvent) Type() EventType {
	if v, ok := e["event"].(string); ok {
		return EventType(v)
	}
	return ""
}

// Field returns the first present field among the given keys. The feed is
// inconsistent about field names across tabs (e.g. player_team_id vs team_id).
func (e RawEvent) Field(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := e[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// GameStatusFinal is the schedule feed's status code for a completed game.
const GameStatusFinal = 4

// GameInfo is the slice of the games table this pipeline reads. The games
// table itself is owned by the schedule sync collaborator.
type GameInfo struct {
	ID           int
	SeasonID     int
	HomeTeam     int
	VisitingTeam int
	Status       int
}

// Final reports whether the game has been played to completion.
func (g GameInfo) Final() bool { return g.Status == GameStatusFinal }

// Synthesized row ids. These match the feed-compatible string keys the
// downstream consumers already rely on; the reconciliation decision itself is
// always made on the natural key, never on these strings.

func GoalieChangeRowID(gameID, period, seconds int, teamCode string) string {
	return fmt.Sprintf("%d_goalie_%d_%d_%s", gameID, period, seconds, teamCode)
}

func FaceoffRowID(gameID, period, seconds, homePlayerID, visitorPlayerID int) string {
	return fmt.Sprintf("%d_faceoff_%d_%d_%d_%d", gameID, period, seconds, homePlayerID, visitorPlayerID)
}

func HitRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_hit_%d", gameID, eventID)
}

func ShotRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_shot_%d", gameID, eventID)
}

func BlockedShotRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_blocked_%d", gameID, eventID)
}

func GoalRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_goal_%d", gameID, eventID)
}

func PenaltyRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_penalty_%d", gameID, eventID)
}

func ShootoutRowID(gameID, eventID int) string {
	return fmt.Sprintf("%d_shootout_%d", gameID, eventID)
}

// GoalieChange records a goalie entering and/or leaving the net.
type GoalieChange struct {
	ID             string
	GameID         int
	SeasonID       int
	Period         int
	Time           string
	Seconds        int
	TeamID         int
	OpponentTeamID int
	Home           bool
	GoalieInID     *int
	GoalieOutID    *int
}

// Faceoff records one faceoff. TeamID semantics: the winning team.
type Faceoff struct {
	ID              string
	GameID          int
	SeasonID        int
	Period          int
	Time            string
	TimeFormatted   string
	Seconds         int
	HomePlayerID    int
	VisitorPlayerID int
	HomeWin         bool
	WinTeamID       int
	OpponentTeamID  int
	XLocation       int
	YLocation       int
	LocationID      int
}

type Hit struct {
	ID             string
	EventID        int
	GameID         int
	SeasonID       int
	Period         int
	Time           string
	TimeFormatted  string
	Seconds        int
	PlayerID       int
	TeamID         int
	OpponentTeamID int
	Home           bool
	XLocation      int
	YLocation      int
	HitType        int
}

// Shot records a shot on goal. GameGoalID, when set, is the feed event id of
// the goal the shot produced; it must resolve to a pbp_goals row for the same
// game or be stored as absent.
type Shot struct {
	ID                     string
	EventID                int
	GameID                 int
	SeasonID               int
	PlayerID               *int
	GoalieID               *int
	TeamID                 int
	OpponentTeamID         int
	Home                   bool
	Period                 int
	Time                   string
	TimeFormatted          string
	Seconds                int
	XLocation              int
	YLocation              int
	ShotType               int
	ShotTypeDescription    string
	Quality                int
	ShotQualityDescription string
	GameGoalID             *int
}

type BlockedShot struct {
	ID                     string
	EventID                int
	GameID                 int
	SeasonID               int
	PlayerID               *int
	GoalieID               *int
	TeamID                 int
	OpponentTeamID         int
	BlockerPlayerID        *int
	BlockerTeamID          *int
	Home                   bool
	Period                 int
	Time                   string
	TimeFormatted          string
	Seconds                int
	XLocation              int
	YLocation              int
	Orientation            int
	ShotType               int
	ShotTypeDescription    string
	Quality                int
	ShotQualityDescription string
}

// GoalAttribution is one plus/minus credit attached to a goal. The rows are
// owned wholesale by the goal and replaced on every re-reconciliation.
type GoalAttribution struct {
	PlayerID     int
	TeamID       int
	JerseyNumber int
}

type Goal struct {
	ID              string
	EventID         int
	GameID          int
	SeasonID        int
	TeamID          int
	OpponentTeamID  int
	Home            bool
	GoalPlayerID    *int
	Assist1PlayerID *int
	Assist2PlayerID *int
	Period          int
	Time            string
	TimeFormatted   string
	Seconds         int
	XLocation       int
	YLocation       int
	LocationSet     bool
	PowerPlay       bool
	EmptyNet        bool
	PenaltyShot     bool
	ShortHanded     bool
	InsuranceGoal   bool
	GameWinning     bool
	GameTieing      bool
	ScorerGoalNum   int
	GoalType        string
	Plus            []GoalAttribution
	Minus           []GoalAttribution
}

type Penalty struct {
	ID                     string
	EventID                int
	GameID                 int
	SeasonID               int
	PlayerID               *int
	PlayerServed           *int
	TeamID                 int
	OpponentTeamID         int
	Home                   bool
	Period                 int
	TimeOffFormatted       string
	Minutes                float64
	MinutesFormatted       string
	Bench                  bool
	PenaltyShot            bool
	PP                     bool
	Offence                int
	PenaltyClassID         int
	PenaltyClass           string
	LangPenaltyDescription string
}

// Shootout records one shootout attempt. Period is always the shootout
// period (7).
type Shootout struct {
	ID             string
	EventID        int
	GameID         int
	SeasonID       int
	PlayerID       *int
	GoalieID       *int
	TeamID         int
	OpponentTeamID int
	Home           bool
	Period         int
	Time           string
	ShotOrder      int
	Goal           bool
	WinningGoal    bool
	Seconds        int
}
