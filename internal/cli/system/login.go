package system

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/habitsync/internal/auth"
	"github.com/julianstephens/habitsync/internal/cli"
	"github.com/julianstephens/habitsync/internal/config"
	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/keyring"
	"github.com/julianstephens/habitsync/internal/logger"
)

// LoginCmd signs the device in, either with a session token or, for single
// user setups, with a bare user id.
type LoginCmd struct {
	Token string        `arg:"" optional:"" help:"Session token (HS256 JWT whose subject is the user id)."`
	User  string        `help:"Sign in as this user id without a token."`
	Issue bool          `help:"Issue a new session token for --user, signed with the configured secret."`
	TTL   time.Duration `help:"Lifetime of an issued token (0 for no expiry)." default:"0"`
}

func (c *LoginCmd) Run(ctx *cli.Context) error {
	token := strings.TrimSpace(c.Token)

	switch {
	case c.Issue:
		if c.User == "" {
			return errors.New("--issue requires --user")
		}
		issued, err := auth.IssueToken(ctx.Config.JWTSecret, c.User, c.TTL)
		if err != nil {
			return err
		}
		token = issued
	case token == "" && c.User == "":
		return errors.New("provide a session token or --user")
	}

	userID := c.User
	if token != "" {
		var err error
		userID, err = auth.ParseToken([]byte(ctx.Config.JWTSecret), token, time.Now)
		if err != nil {
			return err
		}
		if err := keyring.SetSessionToken(token); err != nil {
			// Without a keyring the token must come from the environment.
			logger.Warn("Failed to store session token", "error", err)
			fmt.Printf("⚠ Could not store the session token, set %sSESSION_TOKEN instead\n", config.EnvPrefix)
		} else {
			fmt.Println("✓ Session token stored in OS keyring")
		}
	}

	if token == "" {
		// A stale token would otherwise take precedence over the user id.
		if err := keyring.DeleteSessionToken(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			logger.Warn("Failed to remove stored session token", "error", err)
		}
	}

	if err := ctx.Store.SetMetadata(ctx.Context(), constants.MetadataUserID, userID); err != nil {
		return fmt.Errorf("failed to save user id: %w", err)
	}
	fmt.Printf("✓ Signed in as %s\n", userID)
	if c.Issue {
		fmt.Printf("\nSession token:\n%s\n", token)
	}
	return nil
}

// LogoutCmd forgets the stored session.
type LogoutCmd struct{}

func (c *LogoutCmd) Run(ctx *cli.Context) error {
	if err := keyring.DeleteSessionToken(); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	if err := ctx.Store.SetMetadata(ctx.Context(), constants.MetadataUserID, ""); err != nil {
		return fmt.Errorf("failed to clear user id: %w", err)
	}
	fmt.Println("✓ Signed out")
	return nil
}
