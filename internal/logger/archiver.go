// Package logger archives posts of monitored friends to the local filesystem
// and reconstructs the list of archived posts from the directory tree.
package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/stayreal/companion/internal/models"
	"github.com/stayreal/companion/internal/prefs"
)

// StorageKey is the preference key holding the serialized LoggerState.
const StorageKey = "stayreal_logger_preferences"

// ErrNoDirectory indicates no save directory has been configured.
var ErrNoDirectory = errors.New("logger: no save directory configured")

// Fetcher downloads the body of a remote image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DirectoryPicker asks the user for a save directory. ok is false when the user cancelled.
type DirectoryPicker interface {
	PickDirectory(ctx context.Context) (dir string, ok bool, err error)
}

// Summary reports the outcome of a ProcessFeed call.
type Summary struct {
	Considered int
	Archived   int
	Failed     int
}

// Archiver owns the local logger state and saves monitored friends' posts to disk.
type Archiver struct {
	store   prefs.Store
	picker  DirectoryPicker
	fetcher Fetcher
	logger  *slog.Logger

	mu     sync.Mutex
	state  models.LoggerState
	subs   map[int]func(models.LoggerState)
	nextID int
}

// NewArchiver constructs an Archiver with an empty state. Call Load to restore persisted state.
func NewArchiver(store prefs.Store, picker DirectoryPicker, fetcher Fetcher, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		store:   store,
		picker:  picker,
		fetcher: fetcher,
		logger:  logger,
		state:   defaultState(),
		subs:    make(map[int]func(models.LoggerState)),
	}
}

func defaultState() models.LoggerState {
	return models.LoggerState{Friends: []string{}}
}

// Load restores the persisted state. Missing or malformed preferences fall back
// to the empty default without reporting an error.
func (a *Archiver) Load() {
	state := defaultState()

	raw, ok, err := a.store.Get(StorageKey)
	switch {
	case err != nil:
		a.logger.Debug("logger preferences unreadable, using defaults", "error", err)
	case !ok:
	default:
		var decoded models.LoggerState
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			a.logger.Debug("logger preferences malformed, using defaults", "error", err)
			break
		}
		if decoded.Friends == nil {
			decoded.Friends = []string{}
		}
		state = decoded
	}

	a.mu.Lock()
	a.state = state
	a.mu.Unlock()
	a.notify(state)
}

// State returns a copy of the current state.
func (a *Archiver) State() models.LoggerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Clone()
}

// Subscribe registers fn to be called with the new state after every change.
func (a *Archiver) Subscribe(fn func(models.LoggerState)) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// PickDirectory asks the picker for a directory. Choosing one also enables archiving.
func (a *Archiver) PickDirectory(ctx context.Context) (bool, error) {
	if a.picker == nil {
		return false, errors.New("logger: no directory picker configured")
	}

	dir, ok, err := a.picker.PickDirectory(ctx)
	if err != nil {
		return false, fmt.Errorf("pick directory: %w", err)
	}
	if !ok || dir == "" {
		return false, nil
	}

	return true, a.SetDirectory(dir)
}

// SetDirectory sets the save directory and enables archiving.
func (a *Archiver) SetDirectory(dir string) error {
	return a.mutate(func(s *models.LoggerState) {
		s.Directory = &dir
		s.Enabled = true
	})
}

// ToggleFriend adds username to the monitored list, or removes it when already present.
func (a *Archiver) ToggleFriend(username string) error {
	return a.mutate(func(s *models.LoggerState) {
		for i, friend := range s.Friends {
			if friend == username {
				s.Friends = append(s.Friends[:i:i], s.Friends[i+1:]...)
				return
			}
		}
		s.Friends = append(s.Friends, username)
	})
}

// SetEnabled switches archiving on or off.
func (a *Archiver) SetEnabled(enabled bool) error {
	return a.mutate(func(s *models.LoggerState) {
		s.Enabled = enabled
	})
}

// mutate applies fn to the state and writes the whole state back to the store.
func (a *Archiver) mutate(fn func(*models.LoggerState)) error {
	a.mu.Lock()
	next := a.state.Clone()
	fn(&next)
	a.state = next
	a.mu.Unlock()

	err := a.persist(next)
	a.notify(next)
	return err
}

func (a *Archiver) persist(state models.LoggerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode logger state: %w", err)
	}
	if err := a.store.Set(StorageKey, string(data)); err != nil {
		a.logger.Error("persist logger state", "error", err)
		return fmt.Errorf("persist logger state: %w", err)
	}
	return nil
}

func (a *Archiver) notify(state models.LoggerState) {
	a.mu.Lock()
	subs := make([]func(models.LoggerState), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(state.Clone())
	}
}

// ProcessFeed archives the first post of every monitored user in the feed.
// Nothing happens unless archiving is enabled and a directory is set. Posts are
// handled one after another and a failing post does not stop the others.
func (a *Archiver) ProcessFeed(ctx context.Context, feed *models.Feed) Summary {
	var summary Summary

	state := a.State()
	if !state.Enabled || state.Directory == nil || *state.Directory == "" || feed == nil {
		return summary
	}
	root := *state.Directory

	overviews := make([]models.PostOverview, 0, len(feed.FriendsPosts)+1)
	if feed.UserPosts != nil {
		overviews = append(overviews, *feed.UserPosts)
	}
	overviews = append(overviews, feed.FriendsPosts...)

	for _, overview := range overviews {
		username := overview.User.Username
		if !state.Monitors(username) {
			continue
		}
		// One moment per person per feed snapshot.
		if len(overview.Posts) == 0 {
			continue
		}
		post := overview.Posts[0]

		if err := ctx.Err(); err != nil {
			a.logger.Warn("feed processing interrupted", "error", err)
			return summary
		}

		summary.Considered++
		if err := a.downloadPost(ctx, root, username, post); err != nil {
			summary.Failed++
			a.logger.Error("failed to save post", "username", username, "postId", post.ID, "error", err)
			continue
		}
		summary.Archived++
	}

	return summary
}

// DownloadPost saves both images of post under the current save directory.
func (a *Archiver) DownloadPost(ctx context.Context, username string, post models.Post) error {
	state := a.State()
	if state.Directory == nil || *state.Directory == "" {
		return ErrNoDirectory
	}
	return a.downloadPost(ctx, *state.Directory, username, post)
}
