package cmd

import (
	"fmt"
	"time"

	"scoreline/api"
	"scoreline/config"

	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a producer token",
		Long: `Issue a signed bearer token for the producer endpoints (POST/PATCH under /api).
The token is signed with auth.jwt_secret (SCORELINE_JWT_SECRET).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}

			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			token, err := api.GenerateToken(cfg, subject, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			if !quiet {
				infoColor.Fprintf(cmd.ErrOrStderr(), "Token for %q expires %s\n", subject, time.Now().Add(ttl).Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Producer identity recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")

	return cmd
}
