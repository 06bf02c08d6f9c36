package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/api/handlers"
	"github.com/dvloznov/payables-dashboard/internal/api/middleware"
	"github.com/dvloznov/payables-dashboard/internal/archive"
	"github.com/dvloznov/payables-dashboard/internal/dashboard"
	"github.com/dvloznov/payables-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/payables-dashboard/internal/session"
	"github.com/dvloznov/payables-dashboard/internal/web"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const (
	archiveQueueSize    = 100
	archiveWorkers      = 2
	shutdownGracePeriod = 30 * time.Second
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard web server and JSON API",
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 8599, "HTTP server port")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	source, closeSource, err := newSource(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeSource()

	sessions := session.NewRegistry()
	jobStore := inmemory.NewStore()

	opts := dashboard.Options{
		Filename: cfg.Export.Filename,
		Sheet:    cfg.Export.Sheet,
	}
	var queue *inmemory.Queue
	if cfg.Export.Bucket != "" {
		queue = inmemory.NewQueue(archiveQueueSize, archiveWorkers, jobStore)
		opts.Archiver = archive.NewGCSArchive(cfg.Export.Bucket)
		opts.Jobs = queue
	} else {
		log.Warn().Msg("No export bucket configured - export archive will be disabled")
	}
	svc := dashboard.NewService(source, sessions, opts, log)

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()

	if queue != nil {
		log.Info().Str("bucket", cfg.Export.Bucket).Msg("Starting archive worker")
		if err := queue.Start(workerCtx, svc.HandleJob); err != nil {
			return fmt.Errorf("failed to start archive worker: %w", err)
		}
	}
	go runSweeper(workerCtx, sessions, jobStore, cfg.Server.SessionIdleTimeout, log)

	checker, err := newChecker(cfg, log)
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	handlers.Register(router,
		handlers.NewSessionsHandler(svc, log),
		handlers.NewJobsHandler(jobStore, log),
		handlers.NewConnectionsHandler(checker, log),
	)
	web.NewHandler(svc, log).Register(router)

	handler := middleware.Chain(router,
		middleware.Recovery(log),
		middleware.RequestID,
		middleware.Logger(log),
		middleware.CORS,
	)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(cfg.Query.Timeout),
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting dashboard server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if queue != nil {
		if err := queue.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error stopping archive queue")
		}
	}

	log.Info().Msg("Server exited")
	return nil
}

// writeTimeout leaves room for the slowest fetch. An unbounded fetch gets an
// unbounded write.
func writeTimeout(queryTimeout time.Duration) time.Duration {
	if queryTimeout <= 0 {
		return 0
	}
	return queryTimeout + 30*time.Second
}

// sweepInterval checks a quarter as often as the idle limit, within
// one to fifteen minutes.
func sweepInterval(maxIdle time.Duration) time.Duration {
	interval := maxIdle / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	if interval > 15*time.Minute {
		interval = 15 * time.Minute
	}
	return interval
}

// runSweeper expires idle sessions and forgets finished archive jobs until
// ctx is done.
func runSweeper(ctx context.Context, sessions *session.Registry, store *inmemory.Store, maxIdle time.Duration, log zerolog.Logger) {
	if maxIdle <= 0 {
		log.Info().Msg("Session expiry disabled")
		return
	}

	ticker := time.NewTicker(sweepInterval(maxIdle))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := sessions.Sweep(maxIdle)
			pruned := store.Prune(time.Now().Add(-maxIdle))
			if expired > 0 || pruned > 0 {
				log.Info().
					Int("sessions_expired", expired).
					Int("jobs_pruned", pruned).
					Int("sessions_live", sessions.Len()).
					Msg("Sweep completed")
			}
		}
	}
}
