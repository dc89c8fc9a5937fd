package system

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
)

const testUser = "user-1"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DataPath:             filepath.Join(t.TempDir(), "habitsync.db"),
		UserID:               testUser,
		JWTSecret:            "test-secret",
		ProbeInterval:        time.Second,
		MaxReplayAttempts:    3,
		ReplayInitialBackoff: time.Millisecond,
		ReplayMaxBackoff:     time.Millisecond,
		RequestTimeout:       time.Second,
		BackupsKept:          3,
	}
}

func setupTestContext(t *testing.T, cfg config.Config) *cli.Context {
	t.Helper()
	gokeyring.MockInit()
	ctx := cli.NewContext(context.Background(), cfg)
	t.Cleanup(ctx.Close)
	return ctx
}
