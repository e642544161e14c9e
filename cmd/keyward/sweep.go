// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	accountpg "github.com/keyward/keyward/internal/account/postgres"
	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/logging"
	"github.com/keyward/keyward/internal/observability"
	"github.com/keyward/keyward/internal/session"
	sessionpg "github.com/keyward/keyward/internal/session/postgres"
	"github.com/keyward/keyward/internal/store"
)

// sweepConfig holds configuration for the sweep command.
type sweepConfig struct {
	every time.Duration
}

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	cfg := &sweepConfig{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired sessions and aged audit events",
		Long: `Delete sessions past their expiry and audit events older than the
retention window.

By default sweep runs once and exits, which suits cron or a systemd
timer. With --every it keeps running: sessions are swept at the given
interval, audit events at the configured audit.sweep_interval, and
metrics and health endpoints are served on observability.addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweepWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	cmd.Flags().DurationVar(&cfg.every, "every", 0, "sweep continuously at this interval (0 = run once and exit)")

	return cmd
}

// runSweepWithDeps executes the sweep command with injectable
// dependencies. If deps is nil, default implementations are used.
func runSweepWithDeps(ctx context.Context, cfg *sweepConfig, cmd *cobra.Command, deps *SweepDeps) error {
	if deps == nil {
		deps = &SweepDeps{}
	}
	if deps.TargetsFactory == nil {
		deps.TargetsFactory = buildSweepTargets
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}

	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logging.SetDefault("keyward", version, conf.Log.Format, conf.Log.Level)

	targets, cleanup, err := deps.TargetsFactory(ctx, conf)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.every <= 0 {
		return sweepOnce(ctx, cmd, targets)
	}
	return sweepLoop(ctx, conf, cfg.every, targets, deps)
}

// sweepOnce runs a single sweep of both stores and reports the counts.
func sweepOnce(ctx context.Context, cmd *cobra.Command, targets *SweepTargets) error {
	sessions, err := targets.Sessions.CleanupExpired(ctx)
	if err != nil {
		return err
	}
	events, err := targets.Retention.RunOnce(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Swept %d expired sessions and %d aged audit events\n", sessions, events)
	return nil
}

// sweepLoop runs periodic sweeps until a shutdown signal arrives or the
// observability server fails. Sweep errors are logged and the loop keeps
// going; a transient database outage should not kill the janitor.
func sweepLoop(ctx context.Context, conf config.Config, every time.Duration, targets *SweepTargets, deps *SweepDeps) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start observability server if configured
	var obsServer ObservabilityServer
	if conf.Observability.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(conf.Observability.Addr, targets.Ready)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			return err
		}
		// Monitor observability server errors - cancel context on error
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	// The retention worker ticks on its own audit.sweep_interval and
	// runs its first sweep immediately.
	targets.Retention.Start(ctx)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	sweepSessions(ctx, targets)
	slog.Info("sweep loop started", "interval", every)

loop:
	for {
		select {
		case sig := <-sigChan:
			slog.Info("received shutdown signal", "signal", sig)
			break loop
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down")
			break loop
		case <-ticker.C:
			sweepSessions(ctx, targets)
		}
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	targets.Retention.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

func sweepSessions(ctx context.Context, targets *SweepTargets) {
	if _, err := targets.Sessions.CleanupExpired(ctx); err != nil {
		slog.Error("session sweep failed", "error", err)
	}
}

// buildSweepTargets connects to PostgreSQL and wires the production sweep
// targets: the session service and the audit retention worker. The
// returned cleanup flushes the audit recorder before closing the pool.
func buildSweepTargets(ctx context.Context, conf config.Config) (*SweepTargets, func(), error) {
	pool, err := store.Connect(ctx, conf.Database.URL, conf.Database.ConnectTimeout)
	if err != nil {
		return nil, nil, err
	}

	recorder := audit.NewPostgresRecorder(pool, conf.Audit.RecorderConfig())
	sessions := session.NewService(
		sessionpg.NewSessionRepository(pool),
		accountpg.NewAccountRepository(pool),
		recorder,
		conf.Session.ServiceConfig(),
	)
	retention := audit.NewRetentionWorker(conf.Audit.RetentionConfig(), audit.NewPostgresStore(pool))

	cleanup := func() {
		if err := recorder.Close(); err != nil {
			slog.Warn("error flushing audit recorder", "error", err)
		}
		pool.Close()
	}
	ready := func() bool {
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer pingCancel()
		return pool.Ping(pingCtx) == nil
	}

	return &SweepTargets{Sessions: sessions, Retention: retention, Ready: ready}, cleanup, nil
}

// monitorServerErrors monitors a server's error channel and cancels the
// context on error, so a server failure shuts the whole process down.
// It exits when an error arrives, the channel closes, or the context is
// cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			// Channel closed, server stopped gracefully
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
		// Context cancelled, exit monitoring
	}
}
