package pbp

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/store"
)

// Feed is the slice of the hockeytech client the engine needs; tests stub it.
type Feed interface {
	PlayByPlay(ctx context.Context, gameID int) ([]model.RawEvent, error)
	GameTeams(ctx context.Context, gameID int) (home, visiting int, err error)
}

// RunOpts selects which games a run covers.
type RunOpts struct {
	// GameID targets a single game regardless of what the store thinks it
	// already has. Zero means batch mode.
	GameID int

	// Limit caps the number of games processed in batch mode. Zero means
	// no cap.
	Limit int

	// Force re-reconciles every final game instead of only those with no
	// play-by-play rows yet.
	Force bool

	Concurrency int
}

// RunResult aggregates a whole sync run.
type RunResult struct {
	RunID  string
	Games  int
	Failed int
	Events int64
	Counts map[model.EventType]int
}

// Engine drives play-by-play reconciliation across games: candidate
// selection, a bounded worker pool, per-game transactions, and sync_log
// bookkeeping. One game failing never stops the others.
type Engine struct {
	store store.Store
	feed  Feed
	log   *zap.Logger
}

func NewEngine(st store.Store, feed Feed, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.L()
	}
	return &Engine{store: st, feed: feed, log: log}
}

func (e *Engine) candidates(ctx context.Context, opts RunOpts) ([]model.GameInfo, error) {
	if opts.GameID != 0 {
		game, err := e.store.Game(ctx, opts.GameID)
		if err != nil {
			// The schedule sync may not have seen the game yet; fall back
			// to the feed for the team pairing.
			e.log.Warn("game not in local schedule, using feed team pairing",
				zap.Int("game_id", opts.GameID), zap.Error(err))
			return []model.GameInfo{{ID: opts.GameID}}, nil
		}
		if !game.Final() {
			e.log.Warn("game is not final, reconciling anyway",
				zap.Int("game_id", game.ID), zap.Int("status", game.Status))
		}
		return []model.GameInfo{*game}, nil
	}

	var games []model.GameInfo
	var err error
	if opts.Force {
		games, err = e.store.FinalGames(ctx)
	} else {
		games, err = e.store.GamesMissingPlayByPlay(ctx)
	}
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(games) > opts.Limit {
		games = games[:opts.Limit]
	}
	return games, nil
}

func runMode(opts RunOpts) string {
	switch {
	case opts.GameID != 0:
		return "single"
	case opts.Force:
		return "force"
	default:
		return "batch"
	}
}

// Run executes one sync run and records it in sync_log.
func (e *Engine) Run(ctx context.Context, opts RunOpts) (*RunResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	runID := uuid.New().String()
	if err := e.store.StartSyncRun(ctx, runID, runMode(opts)); err != nil {
		return nil, eris.Wrap(err, "start sync run")
	}

	games, err := e.candidates(ctx, opts)
	if err != nil {
		_ = e.store.FailSyncRun(ctx, runID, err.Error()) //nolint:errcheck
		return nil, eris.Wrap(err, "select candidate games")
	}

	e.log.Info("sync run starting",
		zap.String("run_id", runID),
		zap.String("mode", runMode(opts)),
		zap.Int("games", len(games)),
		zap.Int("concurrency", opts.Concurrency))

	res := &RunResult{RunID: runID, Counts: make(map[model.EventType]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, game := range games {
		g.Go(func() error {
			gameRes, err := e.syncGame(gctx, game)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Per-game isolation: log, count, move on. The game stays
				// a candidate for the next run.
				res.Failed++
				e.log.Error("game reconciliation failed",
					zap.Int("game_id", game.ID), zap.Error(err))
				return nil
			}
			res.Games++
			res.Events += gameRes.Events()
			for typ, n := range gameRes.Counts {
				res.Counts[typ] += n
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck

	if err := e.store.CompleteSyncRun(ctx, runID, int64(res.Games), res.Events); err != nil {
		return res, eris.Wrap(err, "complete sync run")
	}

	e.log.Info("sync run complete",
		zap.String("run_id", runID),
		zap.Int("games", res.Games),
		zap.Int("failed", res.Failed),
		zap.Int64("events", res.Events))
	return res, nil
}

// syncGame fetches and reconciles one game inside one transaction.
func (e *Engine) syncGame(ctx context.Context, game model.GameInfo) (*GameResult, error) {
	if game.HomeTeam == 0 || game.VisitingTeam == 0 {
		home, visiting, err := e.feed.GameTeams(ctx, game.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "resolve teams for game %d", game.ID)
		}
		game.HomeTeam, game.VisitingTeam = home, visiting
		e.log.Debug("team pairing resolved from feed",
			zap.Int("game_id", game.ID),
			zap.Int("home", home), zap.Int("visiting", visiting))
	}

	events, err := e.feed.PlayByPlay(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		e.log.Warn("feed returned no events", zap.Int("game_id", game.ID))
		return &GameResult{GameID: game.ID, Counts: map[model.EventType]int{}}, nil
	}

	var res *GameResult
	err = e.store.WithGameTx(ctx, func(tx store.EventTx) error {
		var err error
		res, err = ReconcileGame(ctx, tx, game, events, e.log)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info("game reconciled",
		zap.Int("game_id", game.ID),
		zap.Int64("events", res.Events()),
		zap.Int("skipped", res.Skipped))
	return res, nil
}
