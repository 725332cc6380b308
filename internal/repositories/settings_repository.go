package repositories

import (
	"context"

	"github.com/stayreal/companion/internal/models"
)

// LoggerSettingsRepository defines data access for the single logger settings record.
type LoggerSettingsRepository interface {
	Get(ctx context.Context) (models.LoggerSettings, error)
	Save(ctx context.Context, settings models.LoggerSettings) error
}
