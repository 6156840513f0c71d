package pbp

import (
	"context"

	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/store"
)

// GameResult summarizes one game's reconciliation.
type GameResult struct {
	GameID  int
	Counts  map[model.EventType]int
	Skipped int
}

// Events returns the total number of events reconciled.
func (r GameResult) Events() int64 {
	var n int64
	for _, c := range r.Counts {
		n += int64(c)
	}
	return n
}

// ReconcileGame processes one game's feed events inside one transaction.
// Goals go first so that shots can validate their goal references against
// rows that are already visible in-transaction. A malformed event is logged
// and skipped; a store failure aborts the whole game so the transaction
// rolls back rather than committing a partial read of the feed.
func ReconcileGame(ctx context.Context, tx store.EventTx, game model.GameInfo, events []model.RawEvent, log *zap.Logger) (*GameResult, error) {
	res := &GameResult{
		GameID: game.ID,
		Counts: make(map[model.EventType]int),
	}

	for _, ev := range events {
		if ev.Type() != model.EventGoal {
			continue
		}
		goal, err := parseGoal(ev, game, log)
		if err != nil {
			res.Skipped++
			log.Warn("skipping malformed goal event",
				zap.Int("game_id", game.ID), zap.Error(err))
			continue
		}
		if err := reconcileGoal(ctx, tx, goal); err != nil {
			return nil, err
		}
		res.Counts[model.EventGoal]++
	}

	for _, ev := range events {
		typ := ev.Type()
		if typ == model.EventGoal {
			continue
		}

		var err error
		switch typ {
		case model.EventGoalieChange:
			var gc *model.GoalieChange
			if gc, err = parseGoalieChange(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileGoalieChange(ctx, tx, gc))
			}
		case model.EventFaceoff:
			var f *model.Faceoff
			if f, err = parseFaceoff(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileFaceoff(ctx, tx, f))
			}
		case model.EventHit:
			var h *model.Hit
			if h, err = parseHit(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileHit(ctx, tx, h))
			}
		case model.EventShot:
			var s *model.Shot
			if s, err = parseShot(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileShot(ctx, tx, s, log))
			}
		case model.EventBlockedShot:
			var b *model.BlockedShot
			if b, err = parseBlockedShot(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileBlockedShot(ctx, tx, b))
			}
		case model.EventPenalty:
			var p *model.Penalty
			if p, err = parsePenalty(ev, game, log); err == nil {
				err = wrapStoreErr(reconcilePenalty(ctx, tx, p))
			}
		case model.EventShootout:
			var s *model.Shootout
			if s, err = parseShootout(ev, game, log); err == nil {
				err = wrapStoreErr(reconcileShootout(ctx, tx, s))
			}
		default:
			// The feed carries narrative rows (period starts, stars of the
			// game) that have no table; ignore them.
			log.Debug("ignoring unhandled event type",
				zap.Int("game_id", game.ID), zap.String("type", string(typ)))
			continue
		}

		if err != nil {
			if isStoreErr(err) {
				return nil, unwrapStoreErr(err)
			}
			res.Skipped++
			log.Warn("skipping malformed event",
				zap.Int("game_id", game.ID),
				zap.String("type", string(typ)),
				zap.Error(err))
			continue
		}
		res.Counts[typ]++
	}

	return res, nil
}

// storeErr separates persistence failures (fatal to the game) from parse
// failures (skippable per event) inside the switch above.
type storeErr struct{ err error }

func (e storeErr) Error() string { return e.err.Error() }

func (e storeErr) Unwrap() error { return e.err }

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return storeErr{err: err}
}

func isStoreErr(err error) bool {
	_, ok := err.(storeErr)
	return ok
}

func unwrapStoreErr(err error) error {
	if se, ok := err.(storeErr); ok {
		return se.err
	}
	return err
}
