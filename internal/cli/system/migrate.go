package system

import (
	"fmt"

	"github.com/julianstephens/habitsync/internal/cli"
)

type MigrateCmd struct {
	Remote bool `help:"Also migrate the remote backend schema."`
}

func (c *MigrateCmd) Run(ctx *cli.Context) error {
	// Opening the local store applies pending migrations.
	if err := ctx.Store.Init(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}

	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	fmt.Printf("✓ Local database is at schema version %d\n", current)

	if c.Remote {
		if ctx.Remote == nil {
			return fmt.Errorf("no remote backend configured")
		}
		if err := ctx.Remote.Init(ctx.Context()); err != nil {
			return fmt.Errorf("failed to migrate remote backend: %w", err)
		}
		fmt.Println("✓ Remote backend schema is up to date")
	}
	return nil
}
