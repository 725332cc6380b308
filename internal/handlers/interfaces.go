package handlers

import (
	"context"

	"github.com/stayreal/companion/internal/models"
)

// LoggerCommands captures the logger operations served over HTTP.
type LoggerCommands interface {
	GetSettings(ctx context.Context) (models.LoggerSettings, error)
	SaveSettings(ctx context.Context, settings models.LoggerSettings) error
	SelectSaveDirectory(ctx context.Context) (*string, error)
	SavePost(ctx context.Context, req models.SavePostRequest) (string, error)
	ListSavedPosts(ctx context.Context) ([]models.SavedPost, error)
	ListSavedPostsByUser(ctx context.Context, userID string) ([]models.SavedPost, error)
	DeleteSavedPost(ctx context.Context, postID string) error
	Stats(ctx context.Context) (map[string]int, error)
}

// FeedQueue schedules background auto-saving of a feed snapshot.
type FeedQueue interface {
	Enqueue(ctx context.Context, feed models.Feed) error
}

// BalancesCommands captures the balances operations served over HTTP.
type BalancesCommands interface {
	Settings(ctx context.Context) (models.BalancesSettings, error)
	SaveSettings(ctx context.Context, settings models.BalancesSettings) error
	Download(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]string, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
