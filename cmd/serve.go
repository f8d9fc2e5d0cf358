package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/analyze"
	"github.com/maim-pdmr/spiz/internal/ingest"
	"github.com/maim-pdmr/spiz/internal/monitor"
	"github.com/maim-pdmr/spiz/internal/pitch"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		client, err := initAnthropic()
		if err != nil {
			return err
		}

		svc, err := initAnswer(st, client)
		if err != nil {
			return err
		}

		api := &apiServer{
			store:    st,
			answer:   svc,
			importer: ingest.NewImporter(st, nil),
			monitor:  monitor.New(st, nil, cfg.Monitor.RatePerSec, nil),
			analyzer: analyze.New(st, client, cfg.Analyze.Model, cfg.Analyze.Concurrency, cfg.Analyze.BatchLimit),
			advisor:  pitch.New(st, client, cfg.Pitch.Model, cfg.Pitch.TopN, nil),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(cfg.Server.CORSOrigins),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
