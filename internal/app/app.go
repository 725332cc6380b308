package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/stayreal/companion/internal/config"
	"github.com/stayreal/companion/internal/db"
	"github.com/stayreal/companion/internal/handlers"
	"github.com/stayreal/companion/internal/httpserver"
	"github.com/stayreal/companion/internal/logging"
	"github.com/stayreal/companion/internal/middleware"
)

const usage = "expected command: serve, migrate, seed, archive, logger, saved, theme, remote, or balances"

// Run bootstraps the stayreal companion.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "serve":
		return serve(ctx)
	case "migrate":
		return runMigrations(ctx, os.Stdout, args[1:])
	case "seed":
		return runSeed(ctx, os.Stdout, args[1:])
	case "archive", "logger", "saved", "theme", "remote", "balances":
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c := newCLI(cfg, os.Stdin, os.Stdout, logging.New(os.Stderr, cfg.LogLevel, false))
		return c.run(ctx, args)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, true)
	slog.SetDefault(logger)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	deps, cleanup, err := buildDependencies(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, deps)

	handler := middleware.RequestLogger(logger)(mux)

	srv := httpserver.New(cfg.AppPort, handler, 2*cfg.HTTPTimeout)

	logger.Info("starting http server", "port", cfg.AppPort, "objectStore", cfg.ObjectStore.Enabled(), "tokenRequired", cfg.APITokenHash != "")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signalCh)

	select {
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case sig := <-signalCh:
		logger.Info("received signal, shutting down", "signal", sig.String())
	case err := <-srvErr:
		if err != nil {
			_ = cleanup(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpserver.ShutdownTimeout)
	defer cancel()

	srvShutdownErr := srv.Shutdown(shutdownCtx)
	if err := cleanup(shutdownCtx); err != nil {
		logger.Warn("feed ingestor did not drain", "error", err)
	}
	return srvShutdownErr
}
