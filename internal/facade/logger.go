// Package facade mirrors the backend-owned logger settings and saved posts and
// routes every mutation through the backend command interface.
package facade

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stayreal/companion/internal/models"
)

// Backend is the command interface of the process that owns logger persistence.
type Backend interface {
	GetSettings(ctx context.Context) (models.LoggerSettings, error)
	SaveSettings(ctx context.Context, settings models.LoggerSettings) error
	SelectSaveDirectory(ctx context.Context) (*string, error)
	SavePost(ctx context.Context, req models.SavePostRequest) (string, error)
	ListSavedPosts(ctx context.Context) ([]models.SavedPost, error)
	ListSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error)
	DeleteSavedPost(ctx context.Context, postID string) error
	Stats(ctx context.Context) (map[string]int, error)
}

// Store is a snapshot of the mirrored state.
type Store struct {
	Settings   models.LoggerSettings
	SavedPosts []models.SavedPost
	IsLoading  bool
	Error      string
}

// Logger is the local mirror of the backend logger.
type Logger struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	settings models.LoggerSettings
	posts    []models.SavedPost
	loading  int
	errMsg   string
	subs     map[int]func(Store)
	nextSub  int
}

// New constructs a Logger with empty settings.
func New(backend Backend, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		backend:  backend,
		logger:   logger,
		now:      time.Now,
		settings: models.LoggerSettings{SelectedFriends: []string{}},
		posts:    []models.SavedPost{},
		subs:     make(map[int]func(Store)),
	}
}

// Snapshot returns a copy of the mirrored state.
func (l *Logger) Snapshot() Store {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Logger) snapshotLocked() Store {
	settings := l.settings
	settings.SelectedFriends = append([]string{}, l.settings.SelectedFriends...)
	return Store{
		Settings:   settings,
		SavedPosts: append([]models.SavedPost{}, l.posts...),
		IsLoading:  l.loading > 0,
		Error:      l.errMsg,
	}
}

// Subscribe registers fn to receive a snapshot after every change.
func (l *Logger) Subscribe(fn func(Store)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// update applies fn under the lock and notifies subscribers.
func (l *Logger) update(fn func()) {
	l.mu.Lock()
	fn()
	snapshot := l.snapshotLocked()
	subs := make([]func(Store), 0, len(l.subs))
	for _, sub := range l.subs {
		subs = append(subs, sub)
	}
	l.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

// run is the single loading and error contract shared by every backend call:
// mark loading, clear the error, call, record "Failed to <action>: <message>"
// on failure and re-raise, then drop the loading mark.
func (l *Logger) run(ctx context.Context, action string, call func(ctx context.Context) error) error {
	l.update(func() {
		l.loading++
		l.errMsg = ""
	})
	defer l.update(func() { l.loading-- })

	if err := call(ctx); err != nil {
		l.logger.Error("logger command failed", "action", action, "error", err)
		l.update(func() { l.errMsg = fmt.Sprintf("Failed to %s: %v", action, err) })
		return err
	}
	return nil
}

// LoadSettings fetches the settings and replaces the mirror.
func (l *Logger) LoadSettings(ctx context.Context) error {
	return l.run(ctx, "load settings", func(ctx context.Context) error {
		settings, err := l.backend.GetSettings(ctx)
		if err != nil {
			return err
		}
		if settings.SelectedFriends == nil {
			settings.SelectedFriends = []string{}
		}
		l.update(func() { l.settings = settings })
		return nil
	})
}

// SaveSettings stores settings on the backend and mirrors them after confirmation.
func (l *Logger) SaveSettings(ctx context.Context, settings models.LoggerSettings) error {
	return l.run(ctx, "save settings", func(ctx context.Context) error {
		if err := l.backend.SaveSettings(ctx, settings); err != nil {
			return err
		}
		settings.SelectedFriends = append([]string{}, settings.SelectedFriends...)
		l.update(func() { l.settings = settings })
		return nil
	})
}

// SelectSaveDirectory asks the backend for a directory. A nil result means none was chosen.
func (l *Logger) SelectSaveDirectory(ctx context.Context) (*string, error) {
	var dir *string
	err := l.run(ctx, "select directory", func(ctx context.Context) error {
		var err error
		dir, err = l.backend.SelectSaveDirectory(ctx)
		return err
	})
	return dir, err
}

// SavePost archives a post on the backend and refreshes the saved posts mirror.
// An empty TakenAt is filled with the current time. A failed refresh is left in
// the error slot but does not fail a save the backend confirmed.
func (l *Logger) SavePost(ctx context.Context, req models.SavePostRequest) (string, error) {
	if req.TakenAt == "" {
		req.TakenAt = l.now().UTC().Format(time.RFC3339)
	}

	var id string
	err := l.run(ctx, "save post", func(ctx context.Context) error {
		var err error
		id, err = l.backend.SavePost(ctx, req)
		if err != nil {
			return err
		}
		if err := l.LoadSavedPosts(ctx); err != nil {
			l.logger.Warn("refresh after save failed", "postId", id, "error", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// LoadSavedPosts replaces the saved posts mirror.
func (l *Logger) LoadSavedPosts(ctx context.Context) error {
	return l.run(ctx, "load saved posts", func(ctx context.Context) error {
		posts, err := l.backend.ListSavedPosts(ctx)
		if err != nil {
			return err
		}
		if posts == nil {
			posts = []models.SavedPost{}
		}
		l.update(func() { l.posts = posts })
		return nil
	})
}

// LoadSavedPostsByUser returns the saved posts of one user without touching the mirror.
func (l *Logger) LoadSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error) {
	var posts []models.SavedPost
	err := l.run(ctx, "load user posts", func(ctx context.Context) error {
		var err error
		posts, err = l.backend.ListSavedPostsByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []models.SavedPost{}
	}
	return posts, nil
}

// DeletePost deletes a saved post and drops it from the mirror after confirmation.
func (l *Logger) DeletePost(ctx context.Context, postID string) error {
	return l.run(ctx, "delete post", func(ctx context.Context) error {
		if err := l.backend.DeleteSavedPost(ctx, postID); err != nil {
			return err
		}
		l.update(func() {
			kept := make([]models.SavedPost, 0, len(l.posts))
			for _, post := range l.posts {
				if post.ID != postID {
					kept = append(kept, post)
				}
			}
			l.posts = kept
		})
		return nil
	})
}

// Stats returns the number of saved posts per username.
func (l *Logger) Stats(ctx context.Context) (map[string]int, error) {
	var stats map[string]int
	err := l.run(ctx, "get stats", func(ctx context.Context) error {
		var err error
		stats, err = l.backend.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = map[string]int{}
	}
	return stats, nil
}

// UpdateSelectedFriends replaces the selected user ids locally.
func (l *Logger) UpdateSelectedFriends(ids []string) {
	ids = append([]string{}, ids...)
	l.update(func() { l.settings.SelectedFriends = ids })
}

// UpdateAutoSaveEnabled toggles auto-save locally.
func (l *Logger) UpdateAutoSaveEnabled(enabled bool) {
	l.update(func() { l.settings.AutoSaveEnabled = enabled })
}

// UpdateSaveDirectory sets the save directory locally.
func (l *Logger) UpdateSaveDirectory(dir string) {
	l.update(func() { l.settings.SaveDirectory = dir })
}

// ClearError empties the error slot.
func (l *Logger) ClearError() {
	l.update(func() { l.errMsg = "" })
}

// IsUserSelected reports whether userID is selected for auto-saving.
func (l *Logger) IsUserSelected(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settings.Selects(userID)
}

// AutoSavePostIfEnabled saves the post when auto-save is on and the author is
// selected. It returns a nil id and no error when either guard rejects the post.
func (l *Logger) AutoSavePostIfEnabled(ctx context.Context, req models.SavePostRequest) (*string, error) {
	l.mu.Lock()
	enabled := l.settings.AutoSaveEnabled
	selected := l.settings.Selects(req.UserID)
	l.mu.Unlock()

	if !enabled || !selected {
		return nil, nil
	}

	id, err := l.SavePost(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("auto-save post: %w", err)
	}
	return &id, nil
}
