// Package balances stores the balances download configuration and writes one
// balance record per configured person into the download folder.
package balances

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stayreal/companion/internal/logger"
	"github.com/stayreal/companion/internal/models"
	"github.com/stayreal/companion/internal/repositories"
)

// SettingsKey is the preference key holding the balances settings.
const SettingsKey = "balances_settings"

// ErrNoFolder indicates no download folder has been configured.
var ErrNoFolder = errors.New("no balances folder configured")

// Record is the content of one balance file.
type Record struct {
	PersonID  string `json:"personId"`
	Balance   string `json:"balance"`
	Timestamp int64  `json:"timestamp"`
}

// Service implements the balances commands.
type Service struct {
	prefs  repositories.PreferenceRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service backed by prefs.
func NewService(prefs repositories.PreferenceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{prefs: prefs, logger: logger, now: time.Now}
}

// Settings returns the stored settings, or empty ones when none were saved.
func (s *Service) Settings(ctx context.Context) (models.BalancesSettings, error) {
	settings := models.BalancesSettings{PeopleIDs: []string{}}

	raw, err := s.prefs.Get(ctx, SettingsKey)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return settings, nil
		}
		return models.BalancesSettings{}, fmt.Errorf("load balances settings: %w", err)
	}
	if err := json.Unmarshal(raw, &settings); err != nil {
		return models.BalancesSettings{}, fmt.Errorf("decode balances settings: %w", err)
	}
	if settings.PeopleIDs == nil {
		settings.PeopleIDs = []string{}
	}
	return settings, nil
}

// SaveSettings replaces the stored settings.
func (s *Service) SaveSettings(ctx context.Context, settings models.BalancesSettings) error {
	if settings.PeopleIDs == nil {
		settings.PeopleIDs = []string{}
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode balances settings: %w", err)
	}
	if err := s.prefs.Set(ctx, SettingsKey, raw); err != nil {
		return fmt.Errorf("store balances settings: %w", err)
	}
	return nil
}

// Download writes <personId>_<unix>.json for every configured person, creating
// the folder when needed, and returns the written file names.
func (s *Service) Download(ctx context.Context) ([]string, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	folder := strings.TrimSpace(settings.Folder)
	if folder == "" {
		return nil, ErrNoFolder
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create balances folder: %w", err)
	}

	stamp := s.now().Unix()
	files := make([]string, 0, len(settings.PeopleIDs))
	for _, personID := range settings.PeopleIDs {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		name := fmt.Sprintf("%s_%d.json", logger.PathSegment(personID), stamp)
		data, err := json.Marshal(Record{PersonID: personID, Balance: "sample", Timestamp: stamp})
		if err != nil {
			return files, fmt.Errorf("encode balance for %s: %w", personID, err)
		}
		if err := os.WriteFile(filepath.Join(folder, name), data, 0o644); err != nil {
			return files, fmt.Errorf("write balance for %s: %w", personID, err)
		}
		files = append(files, name)
	}

	s.logger.Info("downloaded balances", "folder", folder, "count", len(files))
	return files, nil
}

// List returns the names of the files in the configured folder, sorted. No folder,
// configured or on disk, yields an empty list.
func (s *Service) List(ctx context.Context) ([]string, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	result := []string{}
	folder := strings.TrimSpace(settings.Folder)
	if folder == "" {
		return result, nil
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("read balances folder: %w", err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			result = append(result, entry.Name())
		}
	}
	sort.Strings(result)
	return result, nil
}
