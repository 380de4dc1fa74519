// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub/internal/auth"
	authpg "github.com/taskhub/taskhub/internal/auth/postgres"
	"github.com/taskhub/taskhub/internal/config"
	"github.com/taskhub/taskhub/internal/control"
	"github.com/taskhub/taskhub/internal/logging"
	"github.com/taskhub/taskhub/internal/observability"
	"github.com/taskhub/taskhub/internal/store"
	"github.com/taskhub/taskhub/internal/task"
	taskpg "github.com/taskhub/taskhub/internal/task/postgres"
	"github.com/taskhub/taskhub/internal/web"
)

const readinessTimeout = 2 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the JSON API together with the metrics and health listeners.
Flags override the matching configuration keys.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("http.addr", "", "API listen address (default \":3001\")")
	cmd.Flags().String("metrics.addr", "", "metrics listen address, empty to disable")
	cmd.Flags().String("control.addr", "", "gRPC health listen address, empty to disable")
	cmd.Flags().String("log.level", "", "log level: debug, info, warn, error")
	cmd.Flags().String("log.format", "", "log format: json or text")
	cmd.Flags().Bool("database.auto_migrate", false, "apply pending migrations before serving")

	return cmd
}

// runServe wires every component and blocks until a signal, a server
// failure or ctx cancellation.
func runServe(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.SetDefault("taskhub", version, cfg.Log.Format, level)
	logger.Info("starting taskhub",
		"version", version,
		"commit", commit,
		"http_addr", cfg.HTTP.Addr,
		"notify_driver", cfg.Notify.Driver,
	)

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	pool, err := store.Open(ctx, cfg.Database.URL, cfg.PoolOptions())
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	hasher, err := auth.NewBoundedHasher(auth.NewArgon2idHasher(), cfg.Auth.HashConcurrency)
	if err != nil {
		return err
	}
	sessions, err := auth.NewSessionIssuer([]byte(cfg.Auth.JWTSecret), cfg.Auth.SessionTTL,
		auth.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return oops.Code(config.CodeInvalid).With("key", "auth.jwt_secret").Wrap(err)
	}
	notifier, closeNotifier, err := buildNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeNotifier(); err != nil {
			logger.Warn("error closing notifier", "error", err)
		}
	}()

	authSvc, err := auth.NewServiceWithLogger(authpg.NewUserRepository(pool), hasher, sessions, notifier,
		cfg.AuthService(), logger)
	if err != nil {
		return err
	}
	taskSvc, err := task.NewService(taskpg.NewTaskRepository(pool))
	if err != nil {
		return err
	}

	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, observability.PingReadiness(pool, readinessTimeout))
		metrics = obsServer.Metrics()
	}

	api, err := web.NewServer(cfg.WebServer(), web.Deps{
		Auth:     authSvc,
		Tasks:    taskSvc,
		Verifier: sessions,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var started []stopper
	defer func() { stopAll(logger, cfg.HTTP.ShutdownGrace, started) }()

	apiErrCh, err := api.Start()
	if err != nil {
		return err
	}
	started = append(started, api)
	go monitorServerErrors(ctx, cancel, apiErrCh, "api")

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		started = append(started, obsServer)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if cfg.Control.Addr != "" {
		ctlServer, err := control.NewGRPCServer("taskhub", control.WithLogger(logger))
		if err != nil {
			return err
		}
		ctlServer.AddCheck("database", pool.Ping)
		ctlErrCh, err := ctlServer.Start(cfg.Control.Addr)
		if err != nil {
			return err
		}
		started = append(started, ctlServer)
		go monitorServerErrors(ctx, cancel, ctlErrCh, "control-grpc")
		logger.Info("control gRPC server started", "addr", ctlServer.Addr())
	}

	if cfg.Auth.PurgeInterval > 0 {
		go runJanitor(ctx, authSvc, cfg.Auth.PurgeInterval, logger)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("taskhub ready", "addr", api.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}
	cancel()

	logger.Info("shutting down...")
	return nil
}

// stopper is implemented by every listener runServe starts.
type stopper interface {
	Stop(ctx context.Context) error
}

// stopAll stops servers in reverse start order within one grace period.
func stopAll(logger *slog.Logger, grace time.Duration, servers []stopper) {
	if len(servers) == 0 {
		return
	}
	if grace <= 0 {
		grace = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(ctx); err != nil {
			logger.Warn("error stopping server", "error", err)
		}
	}
	logger.Info("shutdown complete")
}

// monitorServerErrors cancels ctx when a server reports an error, so one
// failing listener shuts the whole process down.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
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
	}
}
