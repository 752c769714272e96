package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docaudit/internal/api"
	"github.com/dgallion1/docaudit/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docaudit HTTP API",
	Long: `Start the HTTP API with the async audit workers.

Endpoints:
  GET  /health
  POST /api/audits/sync           audit inline
  POST /api/audits                queue an audit
  GET  /api/audits/{id}/status    job progress
  GET  /api/audits/{id}/result    job report
  GET  /api/reports/{id}          persisted report (requires DATABASE_URL)
  GET  /api/stats/llm             LLM latency stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.ValidateServer(); err != nil {
			return err
		}
		log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel()}))
		return serve(cmd.Context(), log)
	},
}

func serve(ctx context.Context, log *slog.Logger) error {
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	dispatcher := pipeline.NewDispatcher(a.processor, pipeline.DispatcherConfig{
		Workers:  cfg.WorkerCount,
		MaxQueue: cfg.MaxQueueSize,
		JobTTL:   cfg.JobTTL,
	}, log)
	dispatcher.Start(context.WithoutCancel(ctx))

	var reports api.ReportReader
	if a.reports != nil {
		reports = a.reports
	}
	srv := api.NewServer(dispatcher, reports, a.stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // lifted per request by the sync audit route
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting docaudit", "port", cfg.Port, "model", cfg.OpenAIModel, "workers", cfg.WorkerCount)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		dispatcher.Stop()
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	dispatcher.Stop()
	return nil
}
