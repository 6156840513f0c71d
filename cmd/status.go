package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/northpine/pwhl-sync/internal/store"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and recent sync runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p := message.NewPrinter(language.English)

		counts, err := st.EventCounts(ctx, 0)
		if err != nil {
			return err
		}
		p.Printf("event tables:\n")
		var total int64
		for _, table := range store.EventTables {
			p.Printf("  %-20s %12d\n", table, counts[table])
			total += counts[table]
		}
		p.Printf("  %-20s %12d\n", "total", total)

		missing, err := st.GamesMissingPlayByPlay(ctx)
		if err != nil {
			return err
		}
		p.Printf("\nfinal games missing play-by-play: %d\n", len(missing))

		runs, err := st.ListSyncRuns(ctx, statusRuns)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			p.Printf("\nrecent sync runs:\n")
			for _, r := range runs {
				line := p.Sprintf("  %s  %-6s %-8s games=%d events=%d",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Status, r.Games, r.Events)
				if r.Error != "" {
					line += "  " + r.Error
				}
				p.Printf("%s\n", line)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 10, "number of recent sync runs to show")
	rootCmd.AddCommand(statusCmd)
}
