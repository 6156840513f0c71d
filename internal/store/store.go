// Package store persists reconciled play-by-play events. Two backends share
// one interface: SQLite (modernc) for the default single-file database and
// Postgres (pgx) for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/northpine/pwhl-sync/internal/model"
)

// UpsertOutcome reports which branch an upsert took.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota
	Updated
)

func (o UpsertOutcome) String() string {
	if o == Inserted {
		return "inserted"
	}
	return "updated"
}

// SyncRun is one row of the sync_log bookkeeping table.
type SyncRun struct {
	ID          string
	Mode        string
	Status      string
	StartedAt   time.Time
	CompletedAt *time.Time
	Games       int64
	Events      int64
	Error       string
}

// EventTx is the transactional surface the per-event reconcilers write
// through. One EventTx spans exactly one game's reconciliation.
type EventTx interface {
	// Upsert looks the row up by its natural key and updates the mutable
	// columns, or inserts the full row. Safe to repeat with identical input.
	Upsert(ctx context.Context, spec UpsertSpec) (UpsertOutcome, error)

	// GoalExists reports whether a goal row with the given synthesized id
	// has been persisted, used to validate shot back-references.
	GoalExists(ctx context.Context, rowID string) (bool, error)

	// ReplaceGoalAttribution deletes and re-inserts the plus/minus roster
	// rows owned by a goal.
	ReplaceGoalAttribution(ctx context.Context, goal *model.Goal) error
}

// Store is the persistence interface for the play-by-play pipeline.
type Store interface {
	// Games (read-only; the games table is owned by the schedule sync).
	Game(ctx context.Context, gameID int) (*model.GameInfo, error)
	GamesMissingPlayByPlay(ctx context.Context) ([]model.GameInfo, error)
	FinalGames(ctx context.Context) ([]model.GameInfo, error)

	// WithGameTx runs fn inside one transaction. fn returning an error
	// rolls the whole game back; otherwise the transaction commits.
	WithGameTx(ctx context.Context, fn func(tx EventTx) error) error

	// EventCounts returns per-table row counts, for one game or (gameID 0)
	// the whole store.
	EventCounts(ctx context.Context, gameID int) (map[string]int64, error)

	// Sync-run bookkeeping.
	StartSyncRun(ctx context.Context, runID, mode string) error
	CompleteSyncRun(ctx context.Context, runID string, games, events int64) error
	FailSyncRun(ctx context.Context, runID, errMsg string) error
	ListSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}

// EventTables lists the eight play-by-play event tables. The goal
// attribution child tables are owned by pbp_goals and excluded here.
var EventTables = []string{
	"pbp_goalie_changes",
	"pbp_faceoffs",
	"pbp_hits",
	"pbp_shots",
	"pbp_blocked_shots",
	"pbp_goals",
	"pbp_penalties",
	"pbp_shootouts",
}
