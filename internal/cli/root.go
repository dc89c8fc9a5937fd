package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/auth"
	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/constants"
	apperrors "github.com/julianstephens/habitsync/internal/errors"
	"github.com/julianstephens/habitsync/internal/logger"
	"github.com/julianstephens/habitsync/internal/models"
	"github.com/julianstephens/habitsync/internal/stats"
	"github.com/julianstephens/habitsync/internal/storage"
	"github.com/julianstephens/habitsync/internal/storage/postgres"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
	"github.com/julianstephens/habitsync/internal/syncer"
)

type Context struct {
	Config      config.Config
	Store       *sqlite.Store
	Remote      *postgres.Store // nil when no remote backend is configured
	Identity    auth.Provider
	Coordinator *syncer.Coordinator

	base context.Context
}

// NewContext wires the stores and the sync coordinator. Nothing is opened
// until a command touches it.
func NewContext(base context.Context, cfg config.Config) *Context {
	c := &Context{
		Config: cfg,
		Store:  sqlite.NewStore(cfg.DataPath, sqlite.WithBackupsKept(cfg.BackupsKept)),
		base:   base,
	}
	if cfg.RemoteURL != "" {
		c.Remote = postgres.New(cfg.RemoteURL)
	}
	c.Identity = &identity{cfg: cfg, store: c.Store}

	var remote storage.RemoteGateway
	if c.Remote != nil {
		remote = c.Remote
	}
	c.Coordinator = syncer.New(c.Store, remote, c.Identity, syncer.Options{
		MaxAttempts:    cfg.MaxReplayAttempts,
		InitialBackoff: cfg.ReplayInitialBackoff,
		MaxBackoff:     cfg.ReplayMaxBackoff,
		RequestTimeout: cfg.RequestTimeout,
	})
	return c
}

// Context returns the context commands run under.
func (c *Context) Context() context.Context {
	if c.base == nil {
		return context.Background()
	}
	return c.base
}

// Close releases both stores.
func (c *Context) Close() {
	if err := c.Store.Close(); err != nil {
		logger.Warn("Failed to close local store", "error", err)
	}
	if c.Remote != nil {
		if err := c.Remote.Close(); err != nil {
			logger.Warn("Failed to close remote store", "error", err)
		}
	}
}

// Probe reports whether the remote backend answers.
func (c *Context) Probe(ctx context.Context) error {
	if c.Remote == nil {
		return storage.ErrOffline
	}
	ctx, cancel := context.WithTimeout(ctx, c.Config.RequestTimeout)
	defer cancel()
	return c.Remote.Ping(ctx)
}

// Connect derives the connectivity state from a single probe, drains queued
// operations when the backend is reachable, and loads the user's data.
func (c *Context) Connect() error {
	ctx := c.Context()

	if err := c.Store.Init(); err != nil {
		logger.Warn("Local store unavailable", "error", err)
	}

	if err := c.Probe(ctx); err == nil {
		if wasOnline, err := c.Store.GetMetadata(ctx, constants.MetadataLastOnline); err == nil && wasOnline == "false" {
			logger.Info("Remote backend reachable again")
		}
		if err := c.Coordinator.SetOnline(ctx, true); err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Some offline changes were not synced: %v\n", err)
		}
	} else {
		if c.Remote != nil {
			logger.Info("Remote backend unreachable, working offline", "error", err)
		}
		if err := c.Coordinator.SetOnline(ctx, false); err != nil {
			return err
		}
	}

	err := c.Coordinator.RefreshData(ctx)
	if err != nil && c.Coordinator.IsOnline() && apperrors.IsTransient(err) {
		logger.Warn("Remote load failed, switching to offline mode", "error", err)
		if err := c.Coordinator.SetOnline(ctx, false); err != nil {
			return err
		}
		err = c.Coordinator.RefreshData(ctx)
	}
	if err != nil {
		return err
	}

	if userID, err := c.Identity.UserID(ctx); err == nil {
		if err := c.Store.SetMetadata(ctx, constants.MetadataUserID, userID); err != nil {
			logger.Warn("Failed to cache user id", "error", err)
		}
	}
	return nil
}

// Now returns the current time in the configured time zone.
func (c *Context) Now() time.Time {
	return time.Now().In(c.Config.Location())
}

// Today returns today's date in the configured time zone.
func (c *Context) Today() string {
	return stats.DateOf(c.Now())
}

// ResolveDate returns date, or today when it is empty.
func (c *Context) ResolveDate(date string) (string, error) {
	if date == "" {
		return c.Today(), nil
	}
	if _, err := time.Parse(constants.DateFormat, date); err != nil {
		return "", fmt.Errorf("invalid date format: %s (expected YYYY-MM-DD)", date)
	}
	return date, nil
}

// FindHabit looks a habit up by id, id prefix or case-insensitive name.
func (c *Context) FindHabit(ref string) (models.Habit, error) {
	habits, err := c.Coordinator.Habits(c.Context())
	if err != nil {
		return models.Habit{}, err
	}

	ref = strings.TrimSpace(ref)
	var matches []models.Habit
	for _, h := range habits {
		if h.ID == ref || models.CanonicalID(h.ID) == ref {
			return h, nil
		}
		if strings.EqualFold(h.Name, ref) {
			matches = append(matches, h)
		}
	}
	if len(matches) == 0 && len(ref) >= 4 {
		for _, h := range habits {
			if strings.HasPrefix(models.CanonicalID(h.ID), ref) {
				matches = append(matches, h)
			}
		}
	}

	switch len(matches) {
	case 0:
		return models.Habit{}, fmt.Errorf("habit %q not found", ref)
	case 1:
		return matches[0], nil
	default:
		return models.Habit{}, fmt.Errorf("%q matches %d habits, use the id instead", ref, len(matches))
	}
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if _, err := c.Store.Backup(c.Context()); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// identity resolves the signed-in user from the session token, the
// configured user id, or the id cached by the last session.
type identity struct {
	cfg   config.Config
	store storage.LocalStore
}

func (i *identity) UserID(ctx context.Context) (string, error) {
	if i.cfg.SessionToken != "" {
		return auth.NewTokenProvider(i.cfg.JWTSecret, i.cfg.SessionToken).UserID(ctx)
	}
	if i.cfg.UserID != "" {
		return auth.StaticProvider(i.cfg.UserID).UserID(ctx)
	}
	userID, err := i.store.GetMetadata(ctx, constants.MetadataUserID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("%w: run '%s login' first", auth.ErrUnauthenticated, constants.AppName)
	}
	return userID, nil
}
