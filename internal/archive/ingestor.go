package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stayreal/companion/internal/logging"
	"github.com/stayreal/companion/internal/models"
)

// ErrIngestorClosed is returned by Enqueue after Shutdown.
var ErrIngestorClosed = errors.New("feed ingestor closed")

// PostSaver saves a single post.
type PostSaver interface {
	SavePost(ctx context.Context, req models.SavePostRequest) (string, error)
}

// IngestorConfig controls the concurrency characteristics of the ingestor.
type IngestorConfig struct {
	QueueSize int
	Workers   int
	// Timeout bounds the saving of one post.
	Timeout time.Duration
}

// FeedIngestor auto-saves posts of selected friends from submitted feed
// snapshots on a background worker pool.
type FeedIngestor struct {
	saver    PostSaver
	settings SettingsStore
	timeout  time.Duration
	logger   *slog.Logger

	jobs   chan models.Feed
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewFeedIngestor starts cfg.Workers workers.
func NewFeedIngestor(saver PostSaver, settings SettingsStore, cfg IngestorConfig, logger *slog.Logger) *FeedIngestor {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	ing := &FeedIngestor{
		saver:    saver,
		settings: settings,
		timeout:  cfg.Timeout,
		logger:   logger,
		jobs:     make(chan models.Feed, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}

	ing.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go ing.worker()
	}

	return ing
}

// Enqueue schedules a feed snapshot for auto-saving.
func (i *FeedIngestor) Enqueue(ctx context.Context, feed models.Feed) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return ErrIngestorClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case i.jobs <- feed:
		return nil
	}
}

// Shutdown stops accepting feeds and waits for queued ones to finish. When ctx
// expires first, in-flight saves are cancelled.
func (i *FeedIngestor) Shutdown(ctx context.Context) error {
	i.once.Do(func() {
		i.mu.Lock()
		i.closed = true
		close(i.jobs)
		i.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		i.cancel()
		return ctx.Err()
	case <-done:
		i.cancel()
		return nil
	}
}

func (i *FeedIngestor) worker() {
	defer i.wg.Done()

	for feed := range i.jobs {
		i.handleFeed(feed)
	}
}

func (i *FeedIngestor) handleFeed(feed models.Feed) {
	if i.saver == nil || i.settings == nil {
		i.logger.Error("feed ingestor missing dependencies", "hasSaver", i.saver != nil, "hasSettings", i.settings != nil)
		return
	}

	settings, err := i.settings.Get(i.ctx)
	if err != nil {
		i.logger.Error("load logger settings", "error", err)
		return
	}
	if !settings.AutoSaveEnabled {
		return
	}

	for _, req := range AutoSaveRequests(feed, settings) {
		if i.ctx.Err() != nil {
			return
		}

		ctx, cancel := context.WithTimeout(logging.WithLogger(i.ctx, i.logger.With("userId", req.UserID, "momentId", req.MomentID)), i.timeout)
		ctx, span := logging.StartSpan(ctx, "auto_save")
		id, err := i.saver.SavePost(ctx, req)
		cancel()
		span.EndWithError(err)
		if err != nil {
			continue
		}
		logging.FromContext(ctx).Debug("auto-saved post", "postId", id)
	}
}

// AutoSaveRequests builds save requests for the first post of every author in
// feed whose user id is selected in settings.
func AutoSaveRequests(feed models.Feed, settings models.LoggerSettings) []models.SavePostRequest {
	overviews := make([]models.PostOverview, 0, len(feed.FriendsPosts)+1)
	if feed.UserPosts != nil {
		overviews = append(overviews, *feed.UserPosts)
	}
	overviews = append(overviews, feed.FriendsPosts...)

	var reqs []models.SavePostRequest
	for _, overview := range overviews {
		if len(overview.Posts) == 0 || !settings.Selects(overview.User.ID) {
			continue
		}
		reqs = append(reqs, RequestFromPost(overview.User, overview.Posts[0]))
	}
	return reqs
}

// RequestFromPost converts a feed post into a save request.
func RequestFromPost(user models.FeedUser, post models.Post) models.SavePostRequest {
	req := models.SavePostRequest{
		UserID:            user.ID,
		Username:          user.Username,
		MomentID:          post.MomentID,
		PrimaryImageURL:   post.Primary.URL,
		SecondaryImageURL: post.Secondary.URL,
		TakenAt:           post.TakenAt,
		Location:          post.Location,
	}
	if req.MomentID == "" {
		req.MomentID = post.ID
	}
	if req.TakenAt == "" {
		if ts, err := post.Timestamp(); err == nil {
			req.TakenAt = ts.UTC().Format(time.RFC3339)
		}
	}
	if post.Caption != "" {
		caption := post.Caption
		req.Caption = &caption
	}
	return req
}
