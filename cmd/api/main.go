package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/umedi/intake-api/internal/config"
	"github.com/umedi/intake-api/internal/dispatch"
	"github.com/umedi/intake-api/internal/handler/appointment"
	"github.com/umedi/intake-api/internal/handler/health"
	"github.com/umedi/intake-api/internal/repository/cache"
	"github.com/umedi/intake-api/internal/repository/postgres"
	"github.com/umedi/intake-api/internal/router"
	appointmentService "github.com/umedi/intake-api/internal/service/appointment"
	"github.com/umedi/intake-api/pkg/logger"
	"github.com/umedi/intake-api/pkg/metrics"
	"github.com/umedi/intake-api/pkg/security"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "intake-api",
		Short: "Appointment intake API",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(*configPath)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			log := newLogger(cfg.Log)

			ctx := cmd.Context()
			db, err := postgres.NewDB(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.NewMigrator(db).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info("migrations applied", "versions", applied)
			return nil
		},
	}
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Level),
		Output:  os.Stdout,
		Console: cfg.Console,
	})
}

func runServer(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics("intake", registry)

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	codec, err := security.NewFieldCodec([]byte(cfg.Security.EncryptionKey))
	if err != nil {
		return fmt.Errorf("failed to build field codec: %w", err)
	}

	dispatcher, err := dispatch.New(ctx, cfg.Dispatch, cfg.Redis, log, m)
	if err != nil {
		return fmt.Errorf("failed to build dispatcher: %w", err)
	}
	defer dispatcher.Close()
	log.Info("dispatcher ready", "mode", dispatcher.Mode())

	svc := appointmentService.NewService(
		appointmentService.Repositories{
			Sequences:    postgres.NewSequenceRepository(db),
			Appointments: postgres.NewAppointmentRepository(db),
			References:   cache.NewReferenceRepository(postgres.NewReferenceRepository(db), cfg.Cache.ReferenceTTL),
		},
		codec,
		dispatcher,
		appointmentService.Options{QueryTimeout: cfg.Database.QueryTimeout},
		log,
		m,
	)

	routerConfig := router.RouterConfig{
		Mode:     cfg.Server.Mode,
		Gatherer: registry,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r := router.NewRouter(
		appointment.NewHandler(svc),
		health.NewHandler(db, cfg.Database.QueryTimeout),
		routerConfig,
		log,
		m,
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
