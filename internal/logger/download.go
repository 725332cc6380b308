package logger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/stayreal/companion/internal/models"
)

// DateLayout names the per-day directories.
const DateLayout = "2006-01-02"

const defaultExtension = "jpg"

// downloadPost writes root/username/date/{primary,secondary}.ext. Both images are
// fetched concurrently and the first failure is returned. An image already on
// disk is never fetched again, so a half-saved post completes on the next run.
func (a *Archiver) downloadPost(ctx context.Context, root, username string, post models.Post) error {
	createdAt, err := post.Timestamp()
	if err != nil {
		return fmt.Errorf("post %s timestamp: %w", post.ID, err)
	}

	dir := filepath.Join(root, PathSegment(username), createdAt.UTC().Format(DateLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create post directory %s: %w", dir, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.saveMedia(gctx, dir, "primary", post.Primary) })
	g.Go(func() error { return a.saveMedia(gctx, dir, "secondary", post.Secondary) })
	return g.Wait()
}

func (a *Archiver) saveMedia(ctx context.Context, dir, label string, media models.Media) error {
	target := filepath.Join(dir, label+"."+ExtensionFromURL(media.URL))

	if _, err := os.Stat(target); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if a.fetcher == nil {
		return errors.New("logger: no fetcher configured")
	}
	body, err := a.fetcher.Fetch(ctx, media.URL)
	if err != nil {
		return fmt.Errorf("download %s image: %w", label, err)
	}

	if err := writeFileAtomic(target, body); err != nil {
		return err
	}
	a.logger.Info("saved image", "path", target, "bytes", len(body))
	return nil
}

// ExtensionFromURL returns the file extension of the URL path without the dot,
// or "jpg" when the path has none.
func ExtensionFromURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return defaultExtension
	}
	ext := strings.TrimPrefix(path.Ext(parsed.Path), ".")
	if ext == "" {
		return defaultExtension
	}
	return ext
}

// PathSegment turns a username into a single safe directory name.
func PathSegment(name string) string {
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}

// writeFileAtomic writes through a temp file so a partially written image never
// appears under its final name.
func writeFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", target, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename into %s: %w", target, err)
	}
	return nil
}
