package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progress-ledger/config"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	httpapi "github.com/alem-hub/progress-ledger/internal/interface/http"
	"github.com/alem-hub/progress-ledger/internal/interface/http/handlers"
	"github.com/alem-hub/progress-ledger/pkg/logger"
)

// flushTimeout - сколько разовые команды ждут обработки очереди завершений.
const flushTimeout = 10 * time.Second

// ══════════════════════════════════════════════════════════════════════════════
// КОРНЕВАЯ КОМАНДА
// ══════════════════════════════════════════════════════════════════════════════

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Persistent XP and badge ledger",
		Long:          "ledger tracks experience points, levels and badges for a single learner and survives restarts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newStatusCmd(),
		newAwardCmd(),
		newBadgeCmd(),
		newCompleteCmd(),
		newResetCmd(),
		newServeCmd(),
	)

	return root
}

// withApp загружает конфигурацию, собирает app, выполняет fn и закрывает app.
// Разовые команды пишут логи в stderr, чтобы в stdout был только вывод.
func withApp(cmd *cobra.Command, toasts bool, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := newLogger(cfg, cmd.ErrOrStderr())
	a, err := buildApp(ctx, cfg, log, appOptions{out: cmd.OutOrStdout(), toasts: toasts})
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.Warn("close storage", logger.Err(err))
	}

	return runErr
}

func printLevel(out io.Writer, a *app) {
	fmt.Fprintln(out, a.presenter.FormatLevel(a.indicator.View()))
}

// ══════════════════════════════════════════════════════════════════════════════
// РАЗОВЫЕ КОМАНДЫ
// ══════════════════════════════════════════════════════════════════════════════

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show level, XP and recent badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(_ context.Context, a *app) error {
				printLevel(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
}

func newAwardCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "award <amount>",
		Short: "Award XP directly",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}

			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				result := a.gateway.AwardXP(ctx, progress.XP(amount), reason)
				if !result.Applied {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing awarded: amount must be positive and keep XP within range")
				}
				printLevel(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "", "reason shown in the notification")
	return cmd
}

func newBadgeCmd() *cobra.Command {
	var description, icon string

	cmd := &cobra.Command{
		Use:   "badge <id> <title>",
		Short: "Grant a badge; granting a held badge does nothing",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			badge := progress.Badge{ID: args[0], Title: args[1], Description: description, Icon: icon}
			if err := badge.Validate(); err != nil {
				return err
			}

			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				if result := a.gateway.GrantBadge(ctx, badge); !result.Granted {
					fmt.Fprintf(cmd.OutOrStdout(), "badge %q already held\n", badge.ID)
				}
				printLevel(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "badge description")
	cmd.Flags().StringVar(&icon, "icon", "", "badge icon")
	return cmd
}

func newCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <source-id> <title>",
		Short: "Publish a module completion and apply its rewards",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return shared.ErrEmptySourceID
			}

			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				if err := a.bus.Publish(shared.NewUnitCompletedEvent(args[0], args[1])); err != nil {
					return err
				}

				flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
				defer cancel()
				if err := a.bus.Flush(flushCtx); err != nil {
					return fmt.Errorf("wait for completion rewards: %w", err)
				}

				printLevel(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase all XP and badges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset erases all progress; rerun with --yes to confirm")
			}

			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				a.gateway.Reset(ctx)
				printLevel(cmd.OutOrStdout(), a)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the reset")
	return cmd
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP-СЕРВЕР
// ══════════════════════════════════════════════════════════════════════════════

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(cfg, os.Stdout)
			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides LEDGER_HTTP_ADDR")
	return cmd
}

// serve обслуживает HTTP API до отмены ctx.
func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	a, err := buildApp(ctx, cfg, log, appOptions{out: io.Discard})
	if err != nil {
		return err
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	health.AddCheck("storage", handlers.NewStorageCheck(a.store))

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Addr = cfg.HTTP.Addr
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.APIKeyHash = cfg.HTTP.APIKeyHash
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	httpCfg.RecentBadges = cfg.Rewards.RecentBadges
	httpCfg.Version = cfg.App.Version

	srv := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Ledger:        a.gateway,
		Completions:   a.bus,
		Feed:          a.feed,
		Metrics:       a.metrics,
		HealthChecker: health,
		Logger:        log,
	})

	errCh := srv.StartAsync()

	select {
	case err := <-errCh:
		if err != nil {
			_ = a.Close(context.Background())
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("storage close failed", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}
