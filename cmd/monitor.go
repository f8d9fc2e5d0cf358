package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/monitor"
)

var monitorWatch bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Scan monitored web sources for client mentions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("monitor"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		m := monitor.New(st, nil, cfg.Monitor.RatePerSec, nil)

		summary, err := m.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Fonti: %d, match: %d, nuove: %d, fallite: %d\n",
			summary.Sources, summary.Matches, summary.Inserted, summary.Failed)

		if !monitorWatch {
			return nil
		}

		interval := time.Duration(cfg.Monitor.IntervalMins) * time.Minute
		zap.L().Info("watch mode", zap.Duration("interval", interval))
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				summary, err := m.Run(ctx)
				if err != nil {
					zap.L().Error("scan pass failed", zap.Error(err))
					continue
				}
				zap.L().Info("scan pass complete",
					zap.Int("sources", summary.Sources),
					zap.Int("matches", summary.Matches),
					zap.Int("inserted", summary.Inserted),
					zap.Int("failed", summary.Failed),
				)
			}
		}
	},
}

func init() {
	monitorCmd.Flags().BoolVar(&monitorWatch, "watch", false, "keep scanning on the configured interval")
	rootCmd.AddCommand(monitorCmd)
}
