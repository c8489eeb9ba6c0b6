package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cindralabs/riskcore/api/schemas"
	"github.com/cindralabs/riskcore/internal/evaluator"
	"github.com/cindralabs/riskcore/internal/metrics"
	"github.com/cindralabs/riskcore/internal/notify"
	"github.com/cindralabs/riskcore/internal/observability"
	"github.com/cindralabs/riskcore/internal/schedule"
	"github.com/cindralabs/riskcore/internal/store"
)

// newEvaluateCmd creates and configures the `evaluate` command, which runs the
// periodic evaluation loop over all due entities.
func newEvaluateCmd() *cobra.Command {
	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Runs the periodic evaluation loop (SLA clocks, schedules, notifications)",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their corresponding Viper keys. This is the idiomatic way
			// to ensure that command-line flags correctly override values from
			// the config file and environment variables.
			if err := viper.BindPFlag("evaluator.tick_interval", cmd.Flags().Lookup("tick-interval")); err != nil {
				return err
			}
			if err := viper.BindPFlag("evaluator.concurrency", cmd.Flags().Lookup("concurrency")); err != nil {
				return err
			}
			if err := viper.BindPFlag("evaluator.batch_size", cmd.Flags().Lookup("batch-size")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Stop cleanly on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()
			cfg := appConfig

			// Flag overrides were bound in PreRunE; pick up the final values.
			cfg.SetEvaluatorTickInterval(viper.GetDuration("evaluator.tick_interval"))
			cfg.SetEvaluatorConcurrency(viper.GetInt("evaluator.concurrency"))
			cfg.SetEvaluatorBatchSize(viper.GetInt("evaluator.batch_size"))

			once, _ := cmd.Flags().GetBool("once")

			entityStore, cleanup, err := initializeStore(ctx, cfg.Database().URL, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			m := metrics.New("riskcore")
			if cfg.Metrics().Enabled {
				startMetricsServer(ctx, cfg.Metrics().Listen, m, logger)
			}

			eval, err := evaluator.New(
				evaluator.Config{
					TickInterval:        cfg.Evaluator().TickInterval,
					Concurrency:         cfg.Evaluator().Concurrency,
					BatchSize:           cfg.Evaluator().BatchSize,
					NotifyRatePerSecond: cfg.Notifier().RatePerSecond,
				},
				logger,
				entityStore,
				notify.NewLogNotifier(logger),
				schedule.New(),
				cfg.Sla().Policy(),
				m,
			)
			if err != nil {
				return fmt.Errorf("failed to initialize evaluator: %w", err)
			}

			if once {
				stats, err := eval.Tick(ctx, time.Now())
				if err != nil {
					return err
				}
				fmt.Printf("Evaluated %d entities: %d breached, %d warned, %d expired, %d conflicts, %d errors\n",
					stats.Evaluated, stats.Breached, stats.Warned, stats.Expired, stats.Conflicts, stats.Errors)
				return nil
			}

			if err := eval.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	evaluateCmd.Flags().Duration("tick-interval", time.Minute, "Interval between evaluation sweeps. (Overrides config/env)")
	evaluateCmd.Flags().IntP("concurrency", "j", 4, "Number of concurrent entity evaluations. (Overrides config/env)")
	evaluateCmd.Flags().Int("batch-size", 500, "Maximum entities loaded per sweep. (Overrides config/env)")
	evaluateCmd.Flags().Bool("once", false, "Run a single evaluation sweep and exit.")

	return evaluateCmd
}

// initializeStore connects to PostgreSQL when a URL is configured and falls
// back to the in-memory store otherwise. The returned cleanup closes the pool.
func initializeStore(ctx context.Context, databaseURL string, logger *zap.Logger) (schemas.EntityStore, func(), error) {
	if databaseURL == "" {
		logger.Warn("No database URL configured; using in-memory store (state is lost on exit)")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	dbStore, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize entity store: %w", err)
	}
	return dbStore, pool.Close, nil
}

// startMetricsServer exposes the Prometheus endpoint until the context is
// cancelled.
func startMetricsServer(ctx context.Context, listen string, m *metrics.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: listen, Handler: mux}

	go func() {
		logger.Info("Metrics endpoint listening", zap.String("addr", listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
