package theme

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stayreal/companion/internal/prefs"
)

func newTestController(store prefs.Store, system SystemPreference) *Controller {
	return NewController(store, system, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInitializeDefaultsToSystem(t *testing.T) {
	system := NewManualPreference(false)
	c := newTestController(prefs.NewMemoryStore(), system)
	c.Initialize()

	if c.Mode() != ModeSystem {
		t.Fatalf("expected system mode, got %s", c.Mode())
	}
	if c.IsDark() {
		t.Fatal("expected light appearance from system preference")
	}
}

func TestInitializeIgnoresInvalidStoredMode(t *testing.T) {
	store := prefs.NewMemoryStore()
	_ = store.Set(StorageKey, "sepia")

	c := newTestController(store, NewManualPreference(true))
	c.Initialize()
	if c.Mode() != ModeSystem {
		t.Fatalf("expected system mode, got %s", c.Mode())
	}
}

func TestInitializeRestoresStoredMode(t *testing.T) {
	store := prefs.NewMemoryStore()
	_ = store.Set(StorageKey, "light")

	c := newTestController(store, NewManualPreference(true))
	c.Initialize()
	if c.Mode() != ModeLight || c.IsDark() {
		t.Fatalf("expected light mode, got %s dark=%v", c.Mode(), c.IsDark())
	}
}

func TestSystemFlipFollowedInSystemMode(t *testing.T) {
	system := NewManualPreference(false)
	c := newTestController(prefs.NewMemoryStore(), system)
	c.Initialize()

	var seen []bool
	c.OnChange(func(dark bool) { seen = append(seen, dark) })

	system.Set(true)

	if !c.IsDark() {
		t.Fatal("expected dark after system flip")
	}
	if len(seen) != 1 || !seen[0] {
		t.Fatalf("unexpected notifications %v", seen)
	}
}

func TestSystemFlipIgnoredOutsideSystemMode(t *testing.T) {
	system := NewManualPreference(false)
	c := newTestController(prefs.NewMemoryStore(), system)
	c.Initialize()

	if err := c.ChangeMode(ModeLight); err != nil {
		t.Fatalf("change mode: %v", err)
	}
	system.Set(true)
	if c.IsDark() {
		t.Fatal("expected explicit light mode to win over system preference")
	}

	if err := c.ChangeMode(ModeSystem); err != nil {
		t.Fatalf("change mode: %v", err)
	}
	if !c.IsDark() {
		t.Fatal("expected system preference after switching back")
	}
}

func TestChangeModePersists(t *testing.T) {
	store := prefs.NewMemoryStore()
	c := newTestController(store, NewManualPreference(false))
	c.Initialize()

	if err := c.ChangeMode(ModeDark); err != nil {
		t.Fatalf("change mode: %v", err)
	}
	if raw, _, _ := store.Get(StorageKey); raw != "dark" {
		t.Fatalf("expected persisted dark, got %q", raw)
	}
	if !c.IsDark() {
		t.Fatal("expected dark appearance")
	}

	if err := c.ChangeMode(Mode("neon")); err == nil {
		t.Fatal("expected unknown mode to be rejected")
	}
	if c.Mode() != ModeDark {
		t.Fatalf("expected mode unchanged, got %s", c.Mode())
	}
}

func TestChangeModeStoreFailure(t *testing.T) {
	store := prefs.NewMemoryStore()
	c := newTestController(store, NewManualPreference(false))
	c.Initialize()
	store.Err = errors.New("read-only")

	if err := c.ChangeMode(ModeDark); err == nil {
		t.Fatal("expected persist error")
	}
	if !c.IsDark() {
		t.Fatal("expected mode applied despite persist failure")
	}
}

func TestInitializeSubscribesOnce(t *testing.T) {
	system := NewManualPreference(false)
	c := newTestController(prefs.NewMemoryStore(), system)
	c.Initialize()
	c.Initialize()

	calls := 0
	c.OnChange(func(bool) { calls++ })
	system.Set(true)
	if calls != 1 {
		t.Fatalf("expected one resolution per system change, got %d", calls)
	}
}
