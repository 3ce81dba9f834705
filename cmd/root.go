package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quantfolio/fundfacts/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fundfacts",
	Short: "LLM fund-facts augmentation service",
	Long:  "Augments deterministic fund metrics with cached, citation-backed facts retrieved from an LLM provider, behind a cost budget and content guardrails.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local development; deployments use the
		// environment directly.
		_ = godotenv.Load()

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
