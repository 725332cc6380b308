package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/stayreal/companion/internal/commands"
	"github.com/stayreal/companion/internal/config"
	"github.com/stayreal/companion/internal/facade"
	"github.com/stayreal/companion/internal/logger"
	"github.com/stayreal/companion/internal/models"
	"github.com/stayreal/companion/internal/prefs"
	"github.com/stayreal/companion/internal/theme"
)

// cli runs the interactive commands. Local commands work against the
// preferences file in the data directory; remote and balances commands call
// the server.
type cli struct {
	cfg    config.Config
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	store  prefs.Store
}

func newCLI(cfg config.Config, in io.Reader, out io.Writer, logger *slog.Logger) *cli {
	return &cli{
		cfg:    cfg,
		in:     in,
		out:    out,
		logger: logger,
		store:  prefs.NewFileStore(cfg.PreferencesPath()),
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	switch args[0] {
	case "archive":
		return c.archive(ctx, args[1:])
	case "logger":
		return c.loggerCommand(ctx, args[1:])
	case "saved":
		return c.saved()
	case "theme":
		return c.theme(args[1:])
	case "remote":
		return c.remote(ctx, args[1:])
	case "balances":
		return c.balances(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (c *cli) archiver() *logger.Archiver {
	fetcher := newFetcher(c.cfg)
	a := logger.NewArchiver(c.store, logger.PromptPicker{In: c.in, Out: c.out}, fetcher, c.logger)
	a.Load()
	return a
}

// archive runs one feed snapshot through the local logger.
func (c *cli) archive(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: archive <feed.json|->")
	}
	var feed models.Feed
	if err := c.readJSON(args[0], &feed); err != nil {
		return err
	}

	summary := c.archiver().ProcessFeed(ctx, &feed)
	fmt.Fprintf(c.out, "considered %d, archived %d, failed %d\n", summary.Considered, summary.Archived, summary.Failed)
	if summary.Failed > 0 {
		return fmt.Errorf("%d posts failed to archive", summary.Failed)
	}
	return nil
}

func (c *cli) loggerCommand(ctx context.Context, args []string) error {
	a := c.archiver()
	if len(args) == 0 {
		args = []string{"show"}
	}

	var err error
	switch args[0] {
	case "show":
	case "dir":
		if len(args) > 1 {
			err = a.SetDirectory(args[1])
			break
		}
		var ok bool
		ok, err = a.PickDirectory(ctx)
		if err == nil && !ok {
			fmt.Fprintln(c.out, "directory unchanged")
		}
	case "friend":
		if len(args) != 2 {
			return errors.New("usage: logger friend <username>")
		}
		err = a.ToggleFriend(args[1])
	case "enable":
		err = a.SetEnabled(true)
	case "disable":
		err = a.SetEnabled(false)
	default:
		return fmt.Errorf("unknown logger command %q", args[0])
	}
	if err != nil {
		return err
	}
	return writeJSON(c.out, a.State())
}

// saved lists the posts found in the logger directory.
func (c *cli) saved() error {
	state := c.archiver().State()
	if state.Directory == nil {
		return logger.ErrNoDirectory
	}

	posts, err := logger.Scan(*state.Directory)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tUSER\tPRIMARY\tSECONDARY")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Date, p.Username, p.PrimaryPath, p.SecondaryPath)
	}
	return tw.Flush()
}

func (c *cli) theme(args []string) error {
	ctrl := theme.NewController(c.store, theme.NewManualPreference(c.cfg.SystemTheme != string(theme.ModeLight)), c.logger)
	ctrl.Initialize()

	if len(args) > 0 && args[0] == "set" {
		if len(args) != 2 {
			return errors.New("usage: theme set <light|dark|system>")
		}
		mode, err := theme.ParseMode(args[1])
		if err != nil {
			return err
		}
		if err := ctrl.ChangeMode(mode); err != nil {
			return err
		}
	} else if len(args) > 0 && args[0] != "get" {
		return fmt.Errorf("unknown theme command %q", args[0])
	}

	fmt.Fprintf(c.out, "mode=%s dark=%t\n", ctrl.Mode(), ctrl.IsDark())
	return nil
}

func (c *cli) client() (*commands.Client, error) {
	return commands.NewClient(commands.Options{
		BaseURL: c.cfg.BackendURL,
		Token:   c.cfg.APIToken,
		Timeout: 2 * c.cfg.HTTPTimeout,
	})
}

// remote drives the backend-delegated logger through the facade.
func (c *cli) remote(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: remote <settings|dir|friends|enable|disable|save|autosave|feed|posts|delete|stats>")
	}
	client, err := c.client()
	if err != nil {
		return err
	}
	f := facade.New(client, c.logger)

	switch args[0] {
	case "settings":
		if err := f.LoadSettings(ctx); err != nil {
			return err
		}
		return writeJSON(c.out, f.Snapshot().Settings)
	case "dir":
		return c.updateRemoteSettings(ctx, f, func() error {
			if len(args) > 1 {
				f.UpdateSaveDirectory(args[1])
				return nil
			}
			dir, err := f.SelectSaveDirectory(ctx)
			if err != nil {
				return err
			}
			if dir == nil {
				return errors.New("server has no default save directory; pass one explicitly")
			}
			f.UpdateSaveDirectory(*dir)
			return nil
		})
	case "friends":
		return c.updateRemoteSettings(ctx, f, func() error {
			f.UpdateSelectedFriends(args[1:])
			return nil
		})
	case "enable", "disable":
		return c.updateRemoteSettings(ctx, f, func() error {
			f.UpdateAutoSaveEnabled(args[0] == "enable")
			return nil
		})
	case "save", "autosave":
		if len(args) != 2 {
			return fmt.Errorf("usage: remote %s <post.json|->", args[0])
		}
		var req models.SavePostRequest
		if err := c.readJSON(args[1], &req); err != nil {
			return err
		}
		if args[0] == "save" {
			id, err := f.SavePost(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, id)
			return nil
		}
		if err := f.LoadSettings(ctx); err != nil {
			return err
		}
		id, err := f.AutoSavePostIfEnabled(ctx, req)
		if err != nil {
			return err
		}
		if id == nil {
			fmt.Fprintln(c.out, "skipped")
			return nil
		}
		fmt.Fprintln(c.out, *id)
		return nil
	case "feed":
		if len(args) != 2 {
			return errors.New("usage: remote feed <feed.json|->")
		}
		var feed models.Feed
		if err := c.readJSON(args[1], &feed); err != nil {
			return err
		}
		if err := client.SubmitFeed(ctx, feed); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "queued")
		return nil
	case "posts":
		if len(args) > 1 {
			posts, err := f.LoadSavedPostsByUser(ctx, args[1])
			if err != nil {
				return err
			}
			return writeJSON(c.out, posts)
		}
		if err := f.LoadSavedPosts(ctx); err != nil {
			return err
		}
		return writeJSON(c.out, f.Snapshot().SavedPosts)
	case "delete":
		if len(args) != 2 {
			return errors.New("usage: remote delete <post-id>")
		}
		return f.DeletePost(ctx, args[1])
	case "stats":
		stats, err := f.Stats(ctx)
		if err != nil {
			return err
		}
		return writeJSON(c.out, stats)
	default:
		return fmt.Errorf("unknown remote command %q", args[0])
	}
}

// updateRemoteSettings loads the settings, applies change to the mirror and saves it back.
func (c *cli) updateRemoteSettings(ctx context.Context, f *facade.Logger, change func() error) error {
	if err := f.LoadSettings(ctx); err != nil {
		return err
	}
	if err := change(); err != nil {
		return err
	}
	settings := f.Snapshot().Settings
	if err := f.SaveSettings(ctx, settings); err != nil {
		return err
	}
	return writeJSON(c.out, settings)
}

func (c *cli) balances(ctx context.Context, args []string) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		args = []string{"list"}
	}

	switch args[0] {
	case "settings":
		if len(args) > 1 {
			settings := models.BalancesSettings{Folder: args[1], PeopleIDs: append([]string{}, args[2:]...)}
			if err := client.SaveBalancesSettings(ctx, settings); err != nil {
				return err
			}
		}
		settings, err := client.BalancesSettings(ctx)
		if err != nil {
			return err
		}
		return writeJSON(c.out, settings)
	case "download":
		files, err := client.DownloadBalances(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, strings.Join(files, "\n"))
		return nil
	case "list":
		files, err := client.ListBalances(ctx)
		if err != nil {
			return err
		}
		for _, name := range files {
			fmt.Fprintln(c.out, name)
		}
		return nil
	default:
		return fmt.Errorf("unknown balances command %q", args[0])
	}
}

// readJSON decodes the file at path, or stdin for "-".
func (c *cli) readJSON(path string, dst any) error {
	var r io.Reader = c.in
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
