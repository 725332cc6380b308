// Package archive implements the logger commands served by the backend:
// settings, saving posts to an asset store and the saved post index.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stayreal/companion/internal/logger"
	"github.com/stayreal/companion/internal/models"
	"github.com/stayreal/companion/internal/repositories"
	"github.com/stayreal/companion/internal/storage"
)

// AssetStorage persists image bodies and returns their location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, location string) error
}

// SettingsStore reads and writes the logger settings.
type SettingsStore interface {
	Get(ctx context.Context) (models.LoggerSettings, error)
	Save(ctx context.Context, settings models.LoggerSettings) error
}

// Options configures a Service.
type Options struct {
	// Remote, when set, receives images instead of the save directory.
	Remote         AssetStorage
	DefaultSaveDir string
	Logger         *slog.Logger
	Now            func() time.Time
	NewID          func() string
}

// Service implements the logger commands.
type Service struct {
	settings SettingsStore
	posts    repositories.SavedPostRepository
	fetcher  logger.Fetcher
	remote   AssetStorage

	defaultDir string
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

// NewService constructs a Service.
func NewService(settings SettingsStore, posts repositories.SavedPostRepository, fetcher logger.Fetcher, opts Options) *Service {
	s := &Service{
		settings:   settings,
		posts:      posts,
		fetcher:    fetcher,
		remote:     opts.Remote,
		defaultDir: strings.TrimSpace(opts.DefaultSaveDir),
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// GetSettings returns the current logger settings.
func (s *Service) GetSettings(ctx context.Context) (models.LoggerSettings, error) {
	if s.settings == nil {
		return models.LoggerSettings{}, ErrSettingsUnavailable
	}
	return s.settings.Get(ctx)
}

// SaveSettings replaces the logger settings.
func (s *Service) SaveSettings(ctx context.Context, settings models.LoggerSettings) error {
	if s.settings == nil {
		return ErrSettingsUnavailable
	}
	if settings.SelectedFriends == nil {
		settings.SelectedFriends = []string{}
	}
	return s.settings.Save(ctx, settings)
}

// SelectSaveDirectory returns the configured default save directory, or nil when none is set.
func (s *Service) SelectSaveDirectory(context.Context) (*string, error) {
	if s.defaultDir == "" {
		return nil, nil
	}
	dir := s.defaultDir
	return &dir, nil
}

// SavePost downloads both images of a post and records it. A post already saved
// for the same user and moment is not downloaded again; its id is returned.
func (s *Service) SavePost(ctx context.Context, req models.SavePostRequest) (string, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}

	store, err := s.assetStorage(settings)
	if err != nil {
		return "", err
	}

	existing, err := s.posts.FindByMoment(ctx, req.UserID, req.MomentID)
	switch {
	case err == nil:
		s.logger.Info("post already saved", "postId", existing.ID, "userId", req.UserID, "momentId", req.MomentID)
		return existing.ID, nil
	case !errors.Is(err, repositories.ErrNotFound):
		return "", fmt.Errorf("lookup saved post: %w", err)
	}

	id := s.newID()
	now := s.now().UTC()
	prefix := path.Join(logger.PathSegment(req.Username), fmt.Sprintf("%s_%s", now.Format("20060102_150405"), id))

	var primary, secondary string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		primary, err = s.saveImage(gctx, store, prefix+"_primary."+logger.ExtensionFromURL(req.PrimaryImageURL), req.PrimaryImageURL)
		return err
	})
	g.Go(func() error {
		var err error
		secondary, err = s.saveImage(gctx, store, prefix+"_secondary."+logger.ExtensionFromURL(req.SecondaryImageURL), req.SecondaryImageURL)
		return err
	})
	if err := g.Wait(); err != nil {
		s.discard(store, primary, secondary)
		return "", err
	}

	takenAt := req.TakenAt
	if takenAt == "" {
		takenAt = now.Format(time.RFC3339)
	}

	post := models.SavedPost{
		ID:                 id,
		UserID:             req.UserID,
		Username:           req.Username,
		MomentID:           req.MomentID,
		PrimaryImagePath:   primary,
		SecondaryImagePath: secondary,
		Caption:            req.Caption,
		TakenAt:            takenAt,
		SavedAt:            now.Format(time.RFC3339),
		Location:           req.Location,
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.discard(store, primary, secondary)
		if errors.Is(err, repositories.ErrConflict) {
			// Lost a race with a concurrent save of the same moment.
			if existing, findErr := s.posts.FindByMoment(ctx, req.UserID, req.MomentID); findErr == nil {
				return existing.ID, nil
			}
		}
		return "", fmt.Errorf("record saved post: %w", err)
	}

	s.logger.Info("saved post", "postId", id, "username", req.Username, "momentId", req.MomentID)
	return id, nil
}

// ListSavedPosts returns every saved post.
func (s *Service) ListSavedPosts(ctx context.Context) ([]models.SavedPost, error) {
	return s.posts.List(ctx)
}

// ListSavedPostsByUser returns the saved posts of one user.
func (s *Service) ListSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error) {
	return s.posts.ListByUser(ctx, userID)
}

// DeleteSavedPost removes the record and then its images. Failing to remove an
// image does not fail the command.
func (s *Service) DeleteSavedPost(ctx context.Context, postID string) error {
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		return err
	}

	store := s.remote
	if store == nil {
		store = storage.NewLocalStorage("")
	}
	for _, location := range []string{post.PrimaryImagePath, post.SecondaryImagePath} {
		if location == "" {
			continue
		}
		if err := store.Delete(ctx, location); err != nil {
			s.logger.Warn("remove saved image", "postId", postID, "location", location, "error", err)
		}
	}
	return nil
}

// Stats returns the number of saved posts per username.
func (s *Service) Stats(ctx context.Context) (map[string]int, error) {
	return s.posts.CountByUsername(ctx)
}

func (s *Service) assetStorage(settings models.LoggerSettings) (AssetStorage, error) {
	if s.remote != nil {
		return s.remote, nil
	}

	dir := strings.TrimSpace(settings.SaveDirectory)
	if dir == "" {
		return nil, ErrNoSaveDirectory
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, ErrSaveDirectoryMissing
	}
	return storage.NewLocalStorage(dir), nil
}

func (s *Service) saveImage(ctx context.Context, store AssetStorage, name, url string) (string, error) {
	if s.fetcher == nil {
		return "", errors.New("archive: no fetcher configured")
	}
	body, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	location, err := store.Save(ctx, name, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}
	return location, nil
}

// discard removes images of a post that could not be recorded.
func (s *Service) discard(store AssetStorage, locations ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, location := range locations {
		if location == "" {
			continue
		}
		if err := store.Delete(ctx, location); err != nil {
			s.logger.Warn("discard orphaned image", "location", location, "error", err)
		}
	}
}
