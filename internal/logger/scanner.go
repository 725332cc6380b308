package logger

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stayreal/companion/internal/models"
)

// Scan walks root/<username>/<date>/ and returns every date directory holding both
// a primary* and a secondary* entry, newest date first. A missing root yields no
// posts. Only a failure to read root is an error; unreadable user or date
// directories are logged to slog.Default and skipped.
func Scan(root string) ([]models.SavedPostInfo, error) {
	return scan(root, slog.Default())
}

func scan(root string, logger *slog.Logger) ([]models.SavedPostInfo, error) {
	result := []models.SavedPostInfo{}
	if root == "" {
		return result, nil
	}

	users, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return result, nil
		}
		return nil, fmt.Errorf("read save directory %s: %w", root, err)
	}

	for _, user := range users {
		if !user.IsDir() {
			continue
		}
		userDir := filepath.Join(root, user.Name())

		dates, err := os.ReadDir(userDir)
		if err != nil {
			logger.Warn("skipping unreadable user directory", "path", userDir, "error", err)
			continue
		}

		for _, date := range dates {
			if !date.IsDir() {
				continue
			}
			dateDir := filepath.Join(userDir, date.Name())

			entries, err := os.ReadDir(dateDir)
			if err != nil {
				logger.Warn("skipping unreadable date directory", "path", dateDir, "error", err)
				continue
			}

			primary := findPrefix(entries, "primary")
			secondary := findPrefix(entries, "secondary")
			if primary == "" || secondary == "" {
				continue
			}

			result = append(result, models.SavedPostInfo{
				Username:      user.Name(),
				Date:          date.Name(),
				PrimaryPath:   filepath.Join(dateDir, primary),
				SecondaryPath: filepath.Join(dateDir, secondary),
			})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date > result[j].Date
		}
		return result[i].Username < result[j].Username
	})

	return result, nil
}

func findPrefix(entries []os.DirEntry, prefix string) string {
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			return entry.Name()
		}
	}
	return ""
}

// Viewer keeps the scanned list of saved posts in sync with the archiver's directory.
// Every directory change triggers a full re-scan.
type Viewer struct {
	logger      *slog.Logger
	unsubscribe func()

	mu        sync.RWMutex
	directory string
	posts     []models.SavedPostInfo
	err       error
	listeners []func([]models.SavedPostInfo)
}

// NewViewer subscribes to archiver and performs the initial scan.
func NewViewer(archiver *Archiver, logger *slog.Logger) *Viewer {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Viewer{logger: logger, posts: []models.SavedPostInfo{}}

	state := archiver.State()
	v.rescan(directoryOf(state))
	v.unsubscribe = archiver.Subscribe(func(state models.LoggerState) {
		dir := directoryOf(state)

		v.mu.RLock()
		unchanged := dir == v.directory
		v.mu.RUnlock()
		if unchanged {
			return
		}
		v.rescan(dir)
	})
	return v
}

// Posts returns the last scan result.
func (v *Viewer) Posts() []models.SavedPostInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]models.SavedPostInfo{}, v.posts...)
}

// Err returns the error of the last scan, if any.
func (v *Viewer) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Refresh re-scans the current directory.
func (v *Viewer) Refresh() error {
	v.mu.RLock()
	dir := v.directory
	v.mu.RUnlock()
	return v.rescan(dir)
}

// OnChange registers fn to be called after every scan.
func (v *Viewer) OnChange(fn func([]models.SavedPostInfo)) {
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// Close detaches the viewer from the archiver.
func (v *Viewer) Close() {
	if v.unsubscribe != nil {
		v.unsubscribe()
	}
}

func (v *Viewer) rescan(dir string) error {
	posts, err := scan(dir, v.logger)
	if err != nil {
		v.logger.Error("scan saved posts", "directory", dir, "error", err)
		posts = []models.SavedPostInfo{}
	}

	v.mu.Lock()
	v.directory = dir
	v.posts = posts
	v.err = err
	listeners := append([]func([]models.SavedPostInfo){}, v.listeners...)
	v.mu.Unlock()

	for _, fn := range listeners {
		fn(append([]models.SavedPostInfo{}, posts...))
	}
	return err
}

func directoryOf(state models.LoggerState) string {
	if state.Directory == nil {
		return ""
	}
	return *state.Directory
}
