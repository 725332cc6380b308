// Package theme resolves the effective light or dark appearance from a
// persisted mode and the operating system's colour scheme preference.
package theme

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/stayreal/companion/internal/prefs"
)

// StorageKey is the preference key holding the selected mode.
const StorageKey = "stayreal-theme"

// Mode selects how the effective appearance is resolved.
type Mode string

const (
	ModeLight  Mode = "light"
	ModeDark   Mode = "dark"
	ModeSystem Mode = "system"
)

// ParseMode validates a mode name.
func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(raw); mode {
	case ModeLight, ModeDark, ModeSystem:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown theme mode %q", raw)
	}
}

// SystemPreference reports the operating system colour scheme and notifies about changes.
type SystemPreference interface {
	PrefersDark() bool
	Subscribe(fn func(dark bool))
}

// Controller owns the theme mode and the resolved dark flag.
type Controller struct {
	store  prefs.Store
	system SystemPreference
	logger *slog.Logger

	once      sync.Once
	mu        sync.Mutex
	mode      Mode
	dark      bool
	listeners []func(dark bool)
}

// NewController constructs a controller in system mode. Call Initialize before use.
func NewController(store prefs.Store, system SystemPreference, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:  store,
		system: system,
		logger: logger,
		mode:   ModeSystem,
		dark:   true,
	}
}

// Initialize restores the persisted mode, starts following the system
// preference and resolves the initial appearance.
func (c *Controller) Initialize() {
	mode := ModeSystem
	if raw, ok, err := c.store.Get(StorageKey); err != nil {
		c.logger.Debug("theme preference unreadable, using system", "error", err)
	} else if ok {
		if parsed, err := ParseMode(raw); err == nil {
			mode = parsed
		}
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	c.once.Do(func() {
		if c.system != nil {
			c.system.Subscribe(c.systemChanged)
		}
	})

	c.resolve()
}

// ChangeMode switches to mode, persists it and re-resolves the appearance.
// The new mode applies even when persisting fails.
func (c *Controller) ChangeMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()

	err := c.store.Set(StorageKey, string(mode))
	if err != nil {
		c.logger.Error("persist theme mode", "mode", mode, "error", err)
		err = fmt.Errorf("persist theme mode: %w", err)
	}
	c.resolve()
	return err
}

// Mode returns the selected mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// IsDark reports whether the dark appearance is in effect.
func (c *Controller) IsDark() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dark
}

// OnChange registers fn to be called with the resolved flag after every resolution.
func (c *Controller) OnChange(fn func(dark bool)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// systemChanged stays subscribed for the controller's lifetime and only acts in system mode.
func (c *Controller) systemChanged(bool) {
	if c.Mode() != ModeSystem {
		return
	}
	c.resolve()
}

func (c *Controller) resolve() {
	c.mu.Lock()
	var dark bool
	switch c.mode {
	case ModeDark:
		dark = true
	case ModeLight:
		dark = false
	default:
		dark = true
		if c.system != nil {
			dark = c.system.PrefersDark()
		}
	}
	c.dark = dark
	listeners := append([]func(bool){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(dark)
	}
}

// ManualPreference is a SystemPreference whose value is set explicitly.
type ManualPreference struct {
	mu   sync.Mutex
	dark bool
	subs []func(bool)
}

// NewManualPreference returns a preference with the given initial value.
func NewManualPreference(dark bool) *ManualPreference {
	return &ManualPreference{dark: dark}
}

// PrefersDark reports the current value.
func (p *ManualPreference) PrefersDark() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dark
}

// Subscribe registers fn for change notifications.
func (p *ManualPreference) Subscribe(fn func(dark bool)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Set updates the value and notifies subscribers when it changed.
func (p *ManualPreference) Set(dark bool) {
	p.mu.Lock()
	changed := p.dark != dark
	p.dark = dark
	subs := append([]func(bool){}, p.subs...)
	p.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(dark)
	}
}
