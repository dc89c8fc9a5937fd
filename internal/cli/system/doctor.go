package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/lockfile"
	"github.com/julianstephens/habitsync/internal/validation"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := false

	// Check 1: DB reachable
	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
		dbReachable = true
	}

	// Check 2: Schema version and migrations (only if DB is reachable)
	if dbReachable {
		if err := checkSchemaVersion(ctx); err != nil {
			fmt.Printf("❌ Schema version: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Schema version: OK\n")
		}
	} else {
		fmt.Printf("⊘ Schema version: SKIPPED (database not reachable)\n")
	}

	// Check 3: Backups present (warning only)
	if err := checkBackupsPresent(ctx); err != nil {
		fmt.Printf("⚠ Backups present: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Backups present: OK\n")
	}

	// Check 4: Signed-in user (warning only)
	userID, err := ctx.Identity.UserID(ctx.Context())
	if err != nil {
		fmt.Printf("⚠ Signed-in user: WARNING\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Signed-in user: OK (%s)\n", userID)
	}

	// Check 5: Data validation (only if DB is reachable and the user is known)
	switch {
	case !dbReachable:
		fmt.Printf("⊘ Data validation: SKIPPED (database not reachable)\n")
	case userID == "":
		fmt.Printf("⊘ Data validation: SKIPPED (no signed-in user)\n")
	default:
		if err := checkValidation(ctx, userID); err != nil {
			fmt.Printf("❌ Data validation: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Data validation: OK\n")
		}
	}

	// Check 6: Clock/timezone sanity
	if err := checkClockTimezone(ctx); err != nil {
		fmt.Printf("❌ Clock/timezone: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Clock/timezone: OK\n")
	}

	// Check 7: Remote backend (offline is a supported state)
	if ctx.Remote == nil {
		fmt.Printf("⊘ Remote backend: SKIPPED (not configured)\n")
	} else if err := ctx.Probe(ctx.Context()); err != nil {
		fmt.Printf("⚠ Remote backend: WARNING (offline)\n")
		fmt.Printf("   %v\n", err)
	} else {
		fmt.Printf("✓ Remote backend: OK\n")
	}

	// Check 8: Sync watcher (informational)
	if owner, ok := lockfile.Running(lockfile.Path(ctx.Config.ConfigDir())); ok {
		fmt.Printf("✓ Sync watcher: running (pid %d)\n", owner.PID)
	} else {
		fmt.Printf("⊘ Sync watcher: not running\n")
	}

	// Check 9: Keyring (warning only)
	if !keyring.IsAvailable() {
		fmt.Printf("⚠ OS keyring: WARNING\n")
		fmt.Printf("   keyring unavailable, secrets must come from the environment\n")
	} else {
		fmt.Printf("✓ OS keyring: OK\n")
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	db, err := ctx.Store.GetDB()
	if err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	var result int
	if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	mgr := ctx.Store.Backups()
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with '%s backup create'", constants.AppName)
	}
	return nil
}

func checkValidation(ctx *cli.Context, userID string) error {
	bg := ctx.Context()
	habits, err := ctx.Store.GetHabitsByUser(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get habits: %w", err)
	}
	completions, err := ctx.Store.GetCompletionsByUser(bg, userID)
	if err != nil {
		return fmt.Errorf("failed to get completions: %w", err)
	}
	dead, err := ctx.Store.DeadOperations(bg)
	if err != nil {
		return fmt.Errorf("failed to get dead-lettered operations: %w", err)
	}

	result := validation.New().Validate(habits, completions, dead)
	if result.HasConflicts() {
		return errors.New(result.FormatReport())
	}
	return nil
}

func checkClockTimezone(ctx *cli.Context) error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	if ctx.Config.Timezone != "" {
		if _, err := time.LoadLocation(ctx.Config.Timezone); err != nil {
			return fmt.Errorf("configured timezone %q is unknown: %w", ctx.Config.Timezone, err)
		}
	}
	return nil
}
