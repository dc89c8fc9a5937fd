package system

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/storage/sqlite"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting the existing local database before initialization."`
	Source string `help:"Local database file to import the signed-in user's records from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if c.Source != "" {
			absDbPath, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDbPath
			}
			absSource, err := filepath.Abs(c.Source)
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing database: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing database: %w", err)
			}
			// A closed store cannot be reopened.
			ctx.Store = sqlite.NewStore(ctx.Store.GetConfigPath(), sqlite.WithBackupsKept(ctx.Config.BackupsKept))
			fmt.Printf("Deleted existing database at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing database: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized habitsync storage at: %s\n", ctx.Store.GetConfigPath())

	if ctx.Remote != nil {
		if err := ctx.Remote.Init(ctx.Context()); err != nil {
			fmt.Printf("⚠ Remote backend not initialized: %v\n", err)
		} else {
			fmt.Println("✓ Remote backend schema is up to date")
		}
	}

	if c.Source != "" {
		fmt.Printf("Importing data from: %s\n", c.Source)
		if err := c.importData(ctx, c.Source); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		fmt.Println("Import completed successfully!")
	}

	return nil
}

func (c *InitCmd) importData(ctx *cli.Context, sourcePath string) error {
	if _, err := os.Stat(sourcePath); err != nil {
		return fmt.Errorf("source database not found: %w", err)
	}
	userID, err := ctx.Identity.UserID(ctx.Context())
	if err != nil {
		return err
	}

	source := sqlite.NewStore(sourcePath)
	if err := source.Init(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer source.Close()
	bg := ctx.Context()

	fmt.Println("  Importing habits...")
	habits, err := source.GetHabitsByUser(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get habits from source: %w", err)
	}
	for _, h := range habits {
		if err := ctx.Store.PutHabit(bg, h); err != nil {
			return fmt.Errorf("failed to add habit %s: %w", h.ID, err)
		}
	}
	fmt.Printf("    Imported %d habits\n", len(habits))

	fmt.Println("  Importing completions...")
	completions, err := source.GetCompletionsByUser(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get completions from source: %w", err)
	}
	for _, cp := range completions {
		if err := ctx.Store.PutCompletion(bg, cp); err != nil {
			return fmt.Errorf("failed to add completion %s: %w", cp.ID, err)
		}
	}
	fmt.Printf("    Imported %d completions\n", len(completions))

	fmt.Println("  Importing achievements...")
	unlocks, err := source.GetAchievementsByUser(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get achievements from source: %w", err)
	}
	for _, u := range unlocks {
		if err := ctx.Store.PutAchievement(bg, u); err != nil {
			return fmt.Errorf("failed to add achievement %s: %w", u.AchievementID, err)
		}
	}
	fmt.Printf("    Imported %d achievements\n", len(unlocks))

	fmt.Println("  Importing queued operations...")
	ops, err := source.PendingOperations(bg)
	if err != nil {
		return fmt.Errorf("failed to get queued operations from source: %w", err)
	}
	for _, op := range ops {
		if err := ctx.Store.EnqueueOperation(bg, op); err != nil {
			return fmt.Errorf("failed to queue operation %s: %w", op.ID, err)
		}
	}
	fmt.Printf("    Imported %d queued operations\n", len(ops))

	return nil
}
