package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskboard/internal/config"
	"taskboard/internal/middleware"

	"github.com/spf13/cobra"
)

var (
	flagUserID      string
	flagWorkspaceID string
	flagTTL         time.Duration
	flagSecret      string
)

// tokenCmd generates an HS256 JWT for testing/admin usage.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate a JWT (HS256) for API authentication",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := tokenSecret()
		if err != nil {
			return err
		}
		if flagWorkspaceID == "" {
			return errors.New("--workspace is required")
		}
		tok, err := middleware.IssueToken(secret, flagUserID, flagWorkspaceID, flagTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

// decodeTokenCmd verifies a token and prints its claims.
var decodeTokenCmd = &cobra.Command{
	Use:   "token-decode [token]",
	Short: "Verify a JWT and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := tokenSecret()
		if err != nil {
			return err
		}
		claims, err := middleware.ParseToken(args[0], secret)
		if err != nil {
			return err
		}
		b, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func tokenSecret() (string, error) {
	if flagSecret != "" {
		return flagSecret, nil
	}
	secret := config.Load().JWT.Secret
	if secret == "" {
		return "", errors.New("jwt.secret is empty; set it in config or pass --secret")
	}
	return secret, nil
}

func init() {
	rootCmd.AddCommand(tokenCmd, decodeTokenCmd)
	tokenCmd.Flags().StringVar(&flagUserID, "user", "admin", "user id (sub claim)")
	tokenCmd.Flags().StringVar(&flagWorkspaceID, "workspace", "", "workspace id the token is scoped to")
	tokenCmd.Flags().DurationVar(&flagTTL, "ttl", time.Hour, "token time-to-live")
	for _, c := range []*cobra.Command{tokenCmd, decodeTokenCmd} {
		c.Flags().StringVar(&flagSecret, "secret", "", "HS256 secret (default: jwt.secret in config)")
	}
}
