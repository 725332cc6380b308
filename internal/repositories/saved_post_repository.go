package repositories

import (
	"context"

	"github.com/stayreal/companion/internal/models"
)

// SavedPostRepository defines data access for posts archived by the backend.
type SavedPostRepository interface {
	Create(ctx context.Context, post models.SavedPost) error
	Get(ctx context.Context, id string) (models.SavedPost, error)
	FindByMoment(ctx context.Context, userID, momentID string) (models.SavedPost, error)
	List(ctx context.Context) ([]models.SavedPost, error)
	ListByUser(ctx context.Context, userID string) ([]models.SavedPost, error)
	Delete(ctx context.Context, id string) error
	CountByUsername(ctx context.Context) (map[string]int, error)
}
