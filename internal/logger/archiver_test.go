package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stayreal/companion/internal/models"
	"github.com/stayreal/companion/internal/prefs"
)

type stubFetcher struct {
	mu     sync.Mutex
	calls  map[string]int
	failOn map[string]error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: make(map[string]int), failOn: make(map[string]error)}
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[url]++
	if err, ok := s.failOn[url]; ok {
		return nil, err
	}
	return []byte("body:" + url), nil
}

func (s *stubFetcher) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

type stubPicker struct {
	dir string
	ok  bool
	err error
}

func (s stubPicker) PickDirectory(ctx context.Context) (string, bool, error) {
	return s.dir, s.ok, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestArchiver(t *testing.T, store prefs.Store, fetcher Fetcher) *Archiver {
	t.Helper()
	a := NewArchiver(store, nil, fetcher, discardLogger())
	a.Load()
	return a
}

func alicePost(id, primary, secondary string) models.Post {
	return models.Post{
		ID:           id,
		Primary:      models.Media{URL: primary},
		Secondary:    models.Media{URL: secondary},
		CreationDate: "2024-03-05T10:00:00Z",
	}
}

func feedFor(username string, posts ...models.Post) *models.Feed {
	return &models.Feed{
		FriendsPosts: []models.PostOverview{{
			User:  models.FeedUser{ID: "u-" + username, Username: username},
			Posts: posts,
		}},
	}
}

func TestProcessFeedSavesMonitoredFriend(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher()
	a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)

	if err := a.SetDirectory(root); err != nil {
		t.Fatalf("set directory: %v", err)
	}
	if err := a.ToggleFriend("alice"); err != nil {
		t.Fatalf("toggle friend: %v", err)
	}

	feed := feedFor("alice", alicePost("p1", "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.webp"))
	summary := a.ProcessFeed(context.Background(), feed)
	if summary.Archived != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	dayDir := filepath.Join(root, "alice", "2024-03-05")
	primary, err := os.ReadFile(filepath.Join(dayDir, "primary.jpg"))
	if err != nil {
		t.Fatalf("read primary: %v", err)
	}
	if string(primary) != "body:https://cdn.example.com/a.jpg" {
		t.Fatalf("unexpected primary content %q", primary)
	}
	if _, err := os.Stat(filepath.Join(dayDir, "secondary.webp")); err != nil {
		t.Fatalf("expected secondary.webp: %v", err)
	}

	entries, err := os.ReadDir(dayDir)
	if err != nil {
		t.Fatalf("read day dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected exactly two files, got %d", len(entries))
	}
}

func TestProcessFeedIsIdempotent(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher()
	a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
	if err := a.SetDirectory(root); err != nil {
		t.Fatalf("set directory: %v", err)
	}
	if err := a.ToggleFriend("alice"); err != nil {
		t.Fatalf("toggle friend: %v", err)
	}

	feed := feedFor("alice", alicePost("p1", "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"))
	a.ProcessFeed(context.Background(), feed)
	a.ProcessFeed(context.Background(), feed)

	if fetcher.calls["https://cdn.example.com/a.jpg"] != 1 || fetcher.calls["https://cdn.example.com/b.jpg"] != 1 {
		t.Fatalf("expected one fetch per image, got %v", fetcher.calls)
	}
}

func TestProcessFeedOnlyFirstPostPerUser(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher()
	a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
	if err := a.SetDirectory(root); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleFriend("alice"); err != nil {
		t.Fatal(err)
	}

	later := alicePost("p2", "https://cdn.example.com/c.jpg", "https://cdn.example.com/d.jpg")
	feed := feedFor("alice", alicePost("p1", "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"), later)
	a.ProcessFeed(context.Background(), feed)

	if fetcher.calls["https://cdn.example.com/c.jpg"] != 0 {
		t.Fatal("expected later posts of the same user to be ignored")
	}
}

func TestProcessFeedSkipsWhenInactive(t *testing.T) {
	feed := feedFor("alice", alicePost("p1", "https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"))

	assertNoWrites := func(t *testing.T, root string) {
		t.Helper()
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		if len(entries) != 0 {
			t.Fatalf("expected no writes, got %d entries", len(entries))
		}
	}

	t.Run("disabled", func(t *testing.T) {
		root := t.TempDir()
		fetcher := newStubFetcher()
		a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
		if err := a.SetDirectory(root); err != nil {
			t.Fatal(err)
		}
		if err := a.ToggleFriend("alice"); err != nil {
			t.Fatal(err)
		}
		if err := a.SetEnabled(false); err != nil {
			t.Fatal(err)
		}

		a.ProcessFeed(context.Background(), feed)
		if fetcher.total() != 0 {
			t.Fatalf("expected no fetches, got %d", fetcher.total())
		}
		assertNoWrites(t, root)
	})

	t.Run("no friends", func(t *testing.T) {
		root := t.TempDir()
		fetcher := newStubFetcher()
		a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
		if err := a.SetDirectory(root); err != nil {
			t.Fatal(err)
		}

		a.ProcessFeed(context.Background(), feed)
		if fetcher.total() != 0 {
			t.Fatalf("expected no fetches, got %d", fetcher.total())
		}
		assertNoWrites(t, root)
	})

	t.Run("no directory", func(t *testing.T) {
		fetcher := newStubFetcher()
		a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
		if err := a.ToggleFriend("alice"); err != nil {
			t.Fatal(err)
		}
		if err := a.SetEnabled(true); err != nil {
			t.Fatal(err)
		}

		a.ProcessFeed(context.Background(), feed)
		if fetcher.total() != 0 {
			t.Fatalf("expected no fetches, got %d", fetcher.total())
		}
	})
}

func TestProcessFeedIsolatesFailures(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher()
	fetcher.failOn["https://cdn.example.com/bob-a.jpg"] = errors.New("boom")
	a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
	if err := a.SetDirectory(root); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleFriend("bob"); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleFriend("carol"); err != nil {
		t.Fatal(err)
	}

	feed := &models.Feed{FriendsPosts: []models.PostOverview{
		{User: models.FeedUser{Username: "bob"}, Posts: []models.Post{alicePost("b1", "https://cdn.example.com/bob-a.jpg", "https://cdn.example.com/bob-b.jpg")}},
		{User: models.FeedUser{Username: "carol"}, Posts: []models.Post{alicePost("c1", "https://cdn.example.com/carol-a.jpg", "https://cdn.example.com/carol-b.jpg")}},
	}}

	summary := a.ProcessFeed(context.Background(), feed)
	if summary.Failed != 1 || summary.Archived != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(root, "carol", "2024-03-05", "primary.jpg")); err != nil {
		t.Fatalf("expected carol's post saved: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "bob", "2024-03-05", "primary.jpg")); err == nil {
		t.Fatal("expected bob's primary image to be missing")
	}
}

func TestProcessFeedIncludesOwnPosts(t *testing.T) {
	root := t.TempDir()
	fetcher := newStubFetcher()
	a := newTestArchiver(t, prefs.NewMemoryStore(), fetcher)
	if err := a.SetDirectory(root); err != nil {
		t.Fatal(err)
	}
	if err := a.ToggleFriend("me"); err != nil {
		t.Fatal(err)
	}

	feed := &models.Feed{UserPosts: &models.PostOverview{
		User:  models.FeedUser{Username: "me"},
		Posts: []models.Post{alicePost("m1", "https://cdn.example.com/m-a.png", "https://cdn.example.com/m-b")},
	}}

	a.ProcessFeed(context.Background(), feed)
	if _, err := os.Stat(filepath.Join(root, "me", "2024-03-05", "primary.png")); err != nil {
		t.Fatalf("expected primary.png: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "me", "2024-03-05", "secondary.jpg")); err != nil {
		t.Fatalf("expected default jpg extension: %v", err)
	}
}

func TestToggleFriendPersists(t *testing.T) {
	store := prefs.NewMemoryStore()
	a := newTestArchiver(t, store, nil)

	if err := a.ToggleFriend("alice"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := a.ToggleFriend("bob"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if err := a.ToggleFriend("alice"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	raw, ok, _ := store.Get(StorageKey)
	if !ok {
		t.Fatal("expected state to be persisted")
	}
	if !strings.Contains(raw, `"friends":["bob"]`) {
		t.Fatalf("unexpected persisted state %s", raw)
	}

	reloaded := newTestArchiver(t, store, nil)
	state := reloaded.State()
	if len(state.Friends) != 1 || state.Friends[0] != "bob" {
		t.Fatalf("unexpected reloaded friends %v", state.Friends)
	}
}

func TestLoadFallsBackOnMalformedPreferences(t *testing.T) {
	store := prefs.NewMemoryStore()
	_ = store.Set(StorageKey, "{not json")

	a := newTestArchiver(t, store, nil)
	state := a.State()
	if state.Enabled || state.Directory != nil || len(state.Friends) != 0 {
		t.Fatalf("expected default state, got %+v", state)
	}
}

func TestMutateReportsStoreFailure(t *testing.T) {
	store := prefs.NewMemoryStore()
	a := newTestArchiver(t, store, nil)
	store.Err = errors.New("disk full")

	if err := a.SetEnabled(true); err == nil {
		t.Fatal("expected persist error")
	}
	if !a.State().Enabled {
		t.Fatal("expected in-memory state to be updated")
	}
}

func TestPickDirectory(t *testing.T) {
	store := prefs.NewMemoryStore()

	cancelled := NewArchiver(store, stubPicker{}, nil, discardLogger())
	ok, err := cancelled.PickDirectory(context.Background())
	if err != nil || ok {
		t.Fatalf("expected cancelled pick, got ok=%v err=%v", ok, err)
	}
	if cancelled.State().Directory != nil {
		t.Fatal("expected directory to stay unset")
	}

	picked := NewArchiver(store, stubPicker{dir: "/tmp/out", ok: true}, nil, discardLogger())
	ok, err = picked.PickDirectory(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected pick to succeed, got ok=%v err=%v", ok, err)
	}
	state := picked.State()
	if state.Directory == nil || *state.Directory != "/tmp/out" || !state.Enabled {
		t.Fatalf("expected directory set and enabled, got %+v", state)
	}
}

func TestSubscribeReceivesChanges(t *testing.T) {
	a := newTestArchiver(t, prefs.NewMemoryStore(), nil)

	var seen []models.LoggerState
	unsubscribe := a.Subscribe(func(s models.LoggerState) { seen = append(seen, s) })

	if err := a.SetEnabled(true); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	if err := a.SetEnabled(false); err != nil {
		t.Fatal(err)
	}

	if len(seen) != 1 || !seen[0].Enabled {
		t.Fatalf("unexpected notifications %+v", seen)
	}
}

func TestDownloadPostRequiresDirectory(t *testing.T) {
	a := newTestArchiver(t, prefs.NewMemoryStore(), newStubFetcher())
	err := a.DownloadPost(context.Background(), "alice", alicePost("p1", "https://x/a.jpg", "https://x/b.jpg"))
	if !errors.Is(err, ErrNoDirectory) {
		t.Fatalf("expected ErrNoDirectory, got %v", err)
	}
}

func TestPathSegment(t *testing.T) {
	cases := map[string]string{
		"alice":   "alice",
		"a/b":     "a_b",
		`a\b`:     "a_b",
		"..":      "_",
		"  ":      "_",
		"e\u0301": "\u00e9",
	}
	for in, want := range cases {
		if got := PathSegment(in); got != want {
			t.Errorf("PathSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPromptPicker(t *testing.T) {
	dir := t.TempDir()

	got, ok, err := PromptPicker{In: strings.NewReader(dir + "\n"), Out: io.Discard}.PickDirectory(context.Background())
	if err != nil || !ok || got != dir {
		t.Fatalf("expected %s, got %q ok=%v err=%v", dir, got, ok, err)
	}

	_, ok, err = PromptPicker{In: strings.NewReader("\n")}.PickDirectory(context.Background())
	if err != nil || ok {
		t.Fatalf("expected cancellation, got ok=%v err=%v", ok, err)
	}

	if _, _, err := (PromptPicker{In: strings.NewReader(filepath.Join(dir, "missing") + "\n")}).PickDirectory(context.Background()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
