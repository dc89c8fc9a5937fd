package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/julianstephens/habitsync/internal/keyring"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{Environ: []string{}})
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "habitsync", "habitsync.db"), cfg.DataPath)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.Equal(t, 5, cfg.MaxReplayAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.ReplayInitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.ReplayMaxBackoff)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 7, cfg.BackupsKept)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "HABITSYNC_DATA_PATH=" + filepath.Join(dir, "from-file.db") + "\n" +
		"HABITSYNC_MAX_REPLAY_ATTEMPTS=9\n" +
		"HABITSYNC_DEBUG=true\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0600))

	cfg, err := Load(Options{
		EnvFile: envFile,
		Environ: []string{
			"HABITSYNC_MAX_REPLAY_ATTEMPTS=3",
			"HABITSYNC_PROBE_INTERVAL=1m",
			"HABITSYNC_TIMEZONE=UTC",
			"UNRELATED=1",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "from-file.db"), cfg.DataPath, "dotenv value used when env is silent")
	assert.Equal(t, 3, cfg.MaxReplayAttempts, "environment overrides dotenv")
	assert.True(t, cfg.Debug)
	assert.Equal(t, time.Minute, cfg.ProbeInterval)
	assert.Equal(t, "UTC", cfg.Location().String())
	assert.Equal(t, dir, cfg.ConfigDir())
}

func TestLoadMissingEnvFile(t *testing.T) {
	_, err := Load(Options{EnvFile: filepath.Join(t.TempDir(), "missing.env"), Environ: []string{}})
	assert.NoError(t, err)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
	}{
		{name: "bad duration", env: "HABITSYNC_PROBE_INTERVAL=soon"},
		{name: "unknown log level", env: "HABITSYNC_LOG_LEVEL=loud"},
		{name: "zero attempts", env: "HABITSYNC_MAX_REPLAY_ATTEMPTS=0"},
		{name: "unknown timezone", env: "HABITSYNC_TIMEZONE=Mars/Olympus"},
		{name: "backoff inverted", env: "HABITSYNC_REPLAY_MAX_BACKOFF=1ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(Options{Environ: []string{tt.env}})
			assert.Error(t, err)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/data/habitsync.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "habitsync.db"), got)

	got, err = ExpandHome("/var/lib/habitsync.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/habitsync.db", got)
}

func TestResolveSecrets(t *testing.T) {
	gokeyring.MockInit()
	require.NoError(t, keyring.SetConnectionString("postgres://u@localhost/db"))
	require.NoError(t, keyring.SetSessionToken("token-from-keyring"))

	cfg := Config{SessionToken: "explicit-token"}
	cfg.ResolveSecrets()

	assert.Equal(t, "postgres://u@localhost/db", cfg.RemoteURL)
	assert.Equal(t, "explicit-token", cfg.SessionToken)
}

func TestResolveSecretsEmptyKeyring(t *testing.T) {
	gokeyring.MockInit()
	_ = keyring.DeleteConnectionString()
	_ = keyring.DeleteSessionToken()

	cfg := Config{}
	cfg.ResolveSecrets()

	assert.Empty(t, cfg.RemoteURL)
	assert.Empty(t, cfg.SessionToken)
}
