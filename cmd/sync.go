package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/northpine/pwhl-sync/internal/model"
	"github.com/northpine/pwhl-sync/internal/pbp"
)

var (
	syncGameID      int
	syncLimit       int
	syncForce       bool
	syncConcurrency int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile play-by-play events for completed games",
	Long: `Fetches the play-by-play feed for final games that have no events yet
and reconciles them into the store. Safe to re-run: corrected feeds update
rows in place, never duplicate them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		concurrency := syncConcurrency
		if concurrency == 0 {
			concurrency = cfg.Sync.Concurrency
		}
		limit := syncLimit
		if limit == 0 {
			limit = cfg.Sync.Limit
		}

		eng := pbp.NewEngine(st, initFeed(), nil)
		res, err := eng.Run(ctx, pbp.RunOpts{
			GameID:      syncGameID,
			Limit:       limit,
			Force:       syncForce,
			Concurrency: concurrency,
		})
		if err != nil {
			return err
		}

		p := message.NewPrinter(language.English)
		p.Printf("run %s: %d games reconciled, %d failed, %d events\n",
			res.RunID, res.Games, res.Failed, res.Events)
		for _, typ := range model.EventTypes {
			if n := res.Counts[typ]; n > 0 {
				p.Printf("  %-14s %d\n", typ, n)
			}
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().IntVar(&syncGameID, "game-id", 0, "reconcile a single game by id")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "cap the number of games processed")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "re-reconcile every final game")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 0, "games reconciled in parallel")
	rootCmd.AddCommand(syncCmd)
}
