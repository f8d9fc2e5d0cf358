package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maim-pdmr/spiz/internal/analyze"
)

var analyzeLimit int

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Label unanalyzed articles with tone, topic and reputational risk",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initAnthropic()
		if err != nil {
			return err
		}

		limit := analyzeLimit
		if limit == 0 {
			limit = cfg.Analyze.BatchLimit
		}
		a := analyze.New(st, client, cfg.Analyze.Model, cfg.Analyze.Concurrency, limit)

		summary, err := a.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Trovati: %d, analizzati: %d, falliti: %d\n",
			summary.Found, summary.Labeled, summary.Failed)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max articles per pass (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}
