//go:build integration

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stayreal/companion/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresLoggerSettingsRepository_GetAndSave(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresLoggerSettingsRepository(testPool)

	settings, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("get default settings: %v", err)
	}
	if settings.SaveDirectory != "" || settings.AutoSaveEnabled || len(settings.SelectedFriends) != 0 {
		t.Fatalf("expected empty defaults, got %+v", settings)
	}

	want := models.LoggerSettings{SaveDirectory: "/data/stayreal", SelectedFriends: []string{"u1", "u2"}, AutoSaveEnabled: true}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("save settings: %v", err)
	}

	want.SelectedFriends = []string{"u2"}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("overwrite settings: %v", err)
	}

	got, err := repo.Get(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if got.SaveDirectory != want.SaveDirectory || !got.AutoSaveEnabled || len(got.SelectedFriends) != 1 || got.SelectedFriends[0] != "u2" {
		t.Fatalf("unexpected settings %+v", got)
	}
}

func TestPostgresSavedPostRepository_CreateListAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresSavedPostRepository(testPool)

	caption := "first light"
	first := newTestPost("u1", "alice", "m1", time.Now().UTC().Add(-time.Hour))
	first.Caption = &caption
	first.Location = &models.Location{Latitude: 48.85, Longitude: 2.35}
	second := newTestPost("u1", "alice", "m2", time.Now().UTC())
	other := newTestPost("u2", "bob", "m1", time.Now().UTC().Add(-time.Minute))

	for _, post := range []models.SavedPost{first, second, other} {
		if err := repo.Create(ctx, post); err != nil {
			t.Fatalf("create post %s: %v", post.ID, err)
		}
	}

	dup := newTestPost("u1", "alice", "m1", time.Now().UTC())
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate moment, got %v", err)
	}

	found, err := repo.FindByMoment(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("find by moment: %v", err)
	}
	if found.ID != first.ID || found.Caption == nil || *found.Caption != caption || found.Location == nil {
		t.Fatalf("unexpected post %+v", found)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != second.ID {
		t.Fatalf("unexpected listing order: %+v", all)
	}

	alice, err := repo.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(alice) != 2 {
		t.Fatalf("expected 2 posts for u1, got %d", len(alice))
	}

	stats, err := repo.CountByUsername(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) != 2 || stats["alice"] != 2 || stats["bob"] != 1 {
		t.Fatalf("unexpected stats %v", stats)
	}

	if err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.Delete(ctx, first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestPostgresPreferenceStore_SetAndGet(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	store := NewPostgresPreferenceStore(testPool)

	if _, err := store.Get(ctx, "balances_settings"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "balances_settings", []byte(`{"folder":"/a"}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "balances_settings", []byte(`{"folder":"/b"}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	value, err := store.Get(ctx, "balances_settings")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(value) != `{"folder":"/b"}` {
		t.Fatalf("unexpected value %s", value)
	}
}

func newTestPost(userID, username, momentID string, savedAt time.Time) models.SavedPost {
	id := uuid.NewString()
	return models.SavedPost{
		ID:                 id,
		UserID:             userID,
		Username:           username,
		MomentID:           momentID,
		PrimaryImagePath:   "/data/" + username + "/" + id + "_primary.jpg",
		SecondaryImagePath: "/data/" + username + "/" + id + "_secondary.jpg",
		TakenAt:            savedAt.Format(time.RFC3339),
		SavedAt:            savedAt.Format(time.RFC3339),
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE saved_posts, logger_settings, preferences CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}
