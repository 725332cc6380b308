package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stayreal/companion/internal/archive"
	"github.com/stayreal/companion/internal/balances"
	"github.com/stayreal/companion/internal/config"
	"github.com/stayreal/companion/internal/db"
	"github.com/stayreal/companion/internal/handlers"
	"github.com/stayreal/companion/internal/middleware"
	"github.com/stayreal/companion/internal/network"
	"github.com/stayreal/companion/internal/repositories"
	"github.com/stayreal/companion/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the feed ingestor.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	settings := archive.NewCachedSettings(repositories.NewPostgresLoggerSettingsRepository(pool), cfg.SettingsCacheTTL)
	posts := repositories.NewPostgresSavedPostRepository(pool)
	fetcher := newFetcher(cfg)

	opts := archive.Options{
		DefaultSaveDir: cfg.DefaultSaveDir,
		Logger:         logger.With("component", "archive"),
	}
	if cfg.ObjectStore.Enabled() {
		remote, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, nil, fmt.Errorf("configure object store: %w", err)
		}
		opts.Remote = remote
	}
	service := archive.NewService(settings, posts, fetcher, opts)

	ingestor := archive.NewFeedIngestor(service, settings, archive.IngestorConfig{
		QueueSize: cfg.IngestQueueSize,
		Workers:   cfg.IngestWorkers,
		Timeout:   2 * cfg.HTTPTimeout,
	}, logger.With("component", "ingestor"))

	rps := cfg.RateLimitRPS
	limiter := middleware.NewIPRateLimiter(rps, time.Second, rps, 5*time.Minute)
	protect := func(next http.Handler) http.Handler {
		return middleware.RateLimit(limiter)(middleware.RequireToken(cfg.APITokenHash)(next))
	}

	deps := handlers.Dependencies{
		Logger:   service,
		Feeds:    ingestor,
		Balances: balances.NewService(repositories.NewPostgresPreferenceStore(pool), logger.With("component", "balances")),
		Database: pool,
		Protect:  protect,
	}
	return deps, ingestor.Shutdown, nil
}

func newFetcher(cfg config.Config) *network.Client {
	return network.NewClient(network.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: cfg.UserAgent,
		Interval:  cfg.FetchInterval,
	})
}
