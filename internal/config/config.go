package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HABITSYNC_"

type Config struct {
	DataPath     string `env:"DATA_PATH"`
	RemoteURL    string `env:"REMOTE_URL"`
	SessionToken string `env:"SESSION_TOKEN"`
	JWTSecret    string `env:"JWT_SECRET"`
	// UserID is used when no session token is available.
	UserID   string `env:"USER_ID"`
	Debug    bool   `env:"DEBUG"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Timezone string `env:"TIMEZONE"`

	ProbeInterval        time.Duration `env:"PROBE_INTERVAL" envDefault:"30s"`
	MaxReplayAttempts    int           `env:"MAX_REPLAY_ATTEMPTS" envDefault:"5"`
	ReplayInitialBackoff time.Duration `env:"REPLAY_INITIAL_BACKOFF" envDefault:"200ms"`
	ReplayMaxBackoff     time.Duration `env:"REPLAY_MAX_BACKOFF" envDefault:"5s"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`
	BackupsKept          int           `env:"BACKUPS_KEPT" envDefault:"7"`
}

// Options control where Load reads from.
type Options struct {
	// EnvFile is an optional dotenv file. A missing file is not an error.
	EnvFile string
	// Environ overrides the process environment, mainly for tests.
	Environ []string
}

// Load builds the configuration from defaults, the dotenv file and the
// environment, in increasing order of precedence.
func Load(opts Options) (Config, error) {
	vars := map[string]string{}

	if opts.EnvFile != "" {
		fileVars, err := godotenv.Read(opts.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to read %s: %w", opts.EnvFile, err)
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = os.Environ()
	}
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			vars[k] = v
		}
	}

	cfg := Config{DataPath: constants.DefaultConfigPath}
	if err := env.Parse(&cfg, env.Options{Prefix: EnvPrefix, Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	path, err := ExpandHome(cfg.DataPath)
	if err != nil {
		return Config{}, err
	}
	cfg.DataPath = path

	return cfg, cfg.Validate()
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataPath) == "" {
		return errors.New("data path cannot be empty")
	}
	if c.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive, got %s", c.ProbeInterval)
	}
	if c.MaxReplayAttempts < 1 {
		return fmt.Errorf("max replay attempts must be at least 1, got %d", c.MaxReplayAttempts)
	}
	if c.ReplayInitialBackoff <= 0 || c.ReplayMaxBackoff < c.ReplayInitialBackoff {
		return fmt.Errorf("invalid replay backoff %s..%s", c.ReplayInitialBackoff, c.ReplayMaxBackoff)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.BackupsKept < 1 {
		return fmt.Errorf("backups kept must be at least 1, got %d", c.BackupsKept)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// Location returns the configured time zone, defaulting to the host's.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ConfigDir is the directory holding the database, logs and backups.
func (c Config) ConfigDir() string {
	return filepath.Dir(c.DataPath)
}

// ResolveSecrets fills the remote URL and session token from the OS keyring
// when they were not configured explicitly.
func (c *Config) ResolveSecrets() {
	if c.RemoteURL == "" {
		c.RemoteURL = fromKeyring("connection string", keyring.GetConnectionString)
	}
	if c.SessionToken == "" {
		c.SessionToken = fromKeyring("session token", keyring.GetSessionToken)
	}
}

func fromKeyring(what string, get func() (string, error)) string {
	value, err := get()
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Failed to read from keyring", "item", what, "error", err)
		}
		return ""
	}
	return value
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
