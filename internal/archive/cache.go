package archive

import (
	"context"
	"sync"
	"time"

	"github.com/stayreal/companion/internal/models"
)

// CachedSettings wraps a SettingsStore with a TTL-based in-memory copy. Saves
// go through to the base store and refresh the copy.
type CachedSettings struct {
	base SettingsStore
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	value   models.LoggerSettings
	expires time.Time
	valid   bool
}

// NewCachedSettings returns a SettingsStore that caches reads for ttl.
func NewCachedSettings(base SettingsStore, ttl time.Duration) *CachedSettings {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedSettings{base: base, ttl: ttl, now: time.Now}
}

// Get returns the cached settings when fresh, otherwise reads the base store.
func (c *CachedSettings) Get(ctx context.Context) (models.LoggerSettings, error) {
	if c == nil || c.base == nil {
		return models.LoggerSettings{}, ErrSettingsUnavailable
	}

	now := c.now()

	c.mu.RLock()
	value, fresh := c.value, c.valid && now.Before(c.expires)
	c.mu.RUnlock()
	if fresh {
		return cloneSettings(value), nil
	}

	value, err := c.base.Get(ctx)
	if err != nil {
		return models.LoggerSettings{}, err
	}

	c.store(value, now)
	return cloneSettings(value), nil
}

// Save writes through to the base store.
func (c *CachedSettings) Save(ctx context.Context, settings models.LoggerSettings) error {
	if c == nil || c.base == nil {
		return ErrSettingsUnavailable
	}

	if err := c.base.Save(ctx, settings); err != nil {
		c.mu.Lock()
		c.valid = false
		c.mu.Unlock()
		return err
	}

	c.store(cloneSettings(settings), c.now())
	return nil
}

func (c *CachedSettings) store(value models.LoggerSettings, now time.Time) {
	c.mu.Lock()
	c.value = value
	c.expires = now.Add(c.ttl)
	c.valid = true
	c.mu.Unlock()
}

func cloneSettings(s models.LoggerSettings) models.LoggerSettings {
	s.SelectedFriends = append([]string{}, s.SelectedFriends...)
	return s
}
