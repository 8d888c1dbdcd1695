package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"trivora/internal/auth"
	"trivora/internal/config"
	"trivora/internal/domain"
)

// NewTokenCmd mints a bearer token signed with the configured secret.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		email string
		name  string
		ttl   string
	)
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth secret not configured (auth.secret or TRIVORA_AUTH_SECRET)")
			}
			lifetime := config.TTLDuration(config.StringOr(ttl, cfg.Auth.TokenTTL), 24*time.Hour)
			token, err := auth.NewIssuer(cfg.Auth.Secret, cfg.Auth.Issuer, lifetime).
				Issue(domain.Caller{UserID: args[0], Email: email, Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	cmd.Flags().StringVar(&ttl, "ttl", "", "token lifetime, e.g. 24h")
	return cmd
}
