package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/api"
	"github.com/sells-group/scholar-cli/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the read API",
	Long:  "Serves researchers, reputation, the collaboration network and merge candidates over HTTP. Runs the scheduled recompute and the alert checker when configured.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		env, err := initStores(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(monitoring.NewPostgresCountStore(env.Pool), env.Runs, prometheus.DefaultRegisterer)

		sched, err := scheduleRecompute(ctx, env, cfg.Scoring.RecomputeSchedule)
		if err != nil {
			return err
		}
		if sched != nil {
			sched.Start()
			defer func() { <-sched.Stop().Done() }()
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		handler := api.NewRouter(api.Deps{
			Researchers:  env.Researchers,
			Publications: env.Publications,
			Expertise:    env.Fields,
			Status:       collector,
			Network:      env.Weights.NetworkParams,
		}, cfg.Server.AllowedOrigins)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// scheduleRecompute registers the recompute job on a cron scheduler. An empty
// schedule disables it and returns nil.
func scheduleRecompute(ctx context.Context, env *storeEnv, schedule string) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		log := zap.L().With(zap.String("component", "recompute"))
		log.Info("scheduled recompute starting")
		res, err := recompute(ctx, env, cfg.Ingest.Concurrency)
		if err != nil {
			log.Error("scheduled recompute failed", zap.Error(err))
			return
		}
		log.Info("scheduled recompute complete", zap.Any("result", res))
	})
	if err != nil {
		return nil, eris.Wrapf(err, "serve: invalid recompute schedule %q", schedule)
	}
	return c, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
