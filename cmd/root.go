package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "spiz",
	Short: "Media monitoring assistant for press offices",
	Long:  "Imports press review exports, monitors web sources for client mentions, labels coverage via Claude models and answers natural-language questions about the archive.",
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
