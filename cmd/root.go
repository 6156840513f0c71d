package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/northpine/pwhl-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "pwhl-sync",
	Short: "PWHL play-by-play feed reconciliation",
	Long:  "Fetches the HockeyTech play-by-play feed for completed PWHL games and reconciles it into a relational store, idempotently.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
