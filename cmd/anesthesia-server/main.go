package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/anesthesia/internal/config"
	"github.com/ehr/anesthesia/internal/domain/forms"
	"github.com/ehr/anesthesia/internal/platform/db"
	"github.com/ehr/anesthesia/internal/platform/rendercache"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "anesthesia-server",
		Short: "Anesthesia forms API and drawing capture server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(renderCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := migrationsDir(cmd, cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) from %s.\n", count, dir)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dir := migrationsDir(cmd, cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func migrationsDir(cmd *cobra.Command, cfg *config.Config) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return cfg.MigrationsDir
}

func printStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func renderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render saved drawings",
	}

	chartCmd := &cobra.Command{
		Use:   "chart",
		Short: "Render a saved intraoperative chart to PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			patient, _ := cmd.Flags().GetString("patient")
			out, _ := cmd.Flags().GetString("out")
			if patient == "" {
				return fmt.Errorf("--patient is required")
			}
			if out == "" {
				return fmt.Errorf("--out is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := forms.NewService(forms.NewRepoPG(pool))
			svc.SetChartSize(cfg.ChartWidth, cfg.ChartHeight)
			return renderChartFile(ctx, svc, patient, out)
		},
	}
	chartCmd.Flags().String("patient", "", "Patient name of the intraoperative record")
	chartCmd.Flags().String("out", "", "Output PNG file")
	cmd.AddCommand(chartCmd)

	return cmd
}

func renderChartFile(ctx context.Context, svc *forms.Service, patient, out string) error {
	data, err := svc.RenderChart(ctx, patient)
	if err != nil {
		return fmt.Errorf("render chart for %q: %w", patient, err)
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}

func newRenderCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (rendercache.Cache, error) {
	if cfg.RedisURL != "" {
		c, err := rendercache.NewRedisCache(ctx, cfg.RedisURL, "anesthesia:")
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("render cache: redis")
		return c, nil
	}
	c := rendercache.NewMemoryCache()
	c.StartSweeper(ctx, time.Minute)
	logger.Info().Msg("render cache: in-memory")
	return c, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		newLogger("").Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	cache, err := newRenderCache(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open render cache")
	}
	defer cache.Close()

	inTx := func(ctx context.Context, fn func(context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	}
	e := newServer(cfg, logger, serverDeps{
		Forms: forms.NewRepoPG(pool),
		InTx:  inTx,
		Cache: cache,
		Ping:  pool.Ping,
		Stats: func() *db.PoolStats { return db.GetPoolStats(pool) },
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
