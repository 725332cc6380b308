package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stayreal/companion/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Ping(context.Context) error { return nil }

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		HTTPTimeout:      time.Second,
		RateLimitRPS:     5,
		SettingsCacheTTL: time.Minute,
		IngestWorkers:    1,
		IngestQueueSize:  1,
		ObjectStore:      config.ObjectStoreConfig{Bucket: "test-bucket", Endpoint: "http://localhost:9000", Region: "us-east-1"},
	}

	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleanup == nil {
		t.Fatal("expected cleanup function")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = cleanup(ctx)
	}()

	if deps.Logger == nil {
		t.Fatal("expected logger commands to be configured")
	}
	if deps.Feeds == nil {
		t.Fatal("expected feed queue to be configured")
	}
	if deps.Balances == nil {
		t.Fatal("expected balances commands to be configured")
	}
	if deps.Database == nil {
		t.Fatal("expected database health check to be configured")
	}
	if deps.Protect == nil {
		t.Fatal("expected api middleware to be configured")
	}
}

func TestBuildDependenciesWithoutObjectStore(t *testing.T) {
	deps, cleanup, err := buildDependencies(context.Background(), fakePool{}, config.Config{RateLimitRPS: 1}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = cleanup(context.Background()) }()

	dir, err := deps.Logger.SelectSaveDirectory(context.Background())
	if err != nil || dir != nil {
		t.Fatalf("expected no default directory, got %v %v", dir, err)
	}
}
