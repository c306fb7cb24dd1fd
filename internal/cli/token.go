package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/service/auth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newTokenCmd(v *viper.Viper) *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Work with API access tokens",
	}

	var (
		userID     string
		ttlMinutes int
	)
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token for a user",
		Long: `Issue an access token signed with the server's JWT secret.

The secret is read from --secret or DAYPLAN_AUTH_JWT_SECRET.

Examples:
  dayplanctl token issue --user 5b0c7c0e-6d5e-4c57-9f0e-2f1f3c7d9a10
  dayplanctl token issue --user $USER_ID --ttl 15`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := uuid.Parse(userID)
			if err != nil {
				return fmt.Errorf("invalid --user %q: %w", userID, err)
			}

			secret := v.GetString(keyJWTSecret)
			if secret == "" {
				return errors.New("no JWT secret: set --secret or DAYPLAN_AUTH_JWT_SECRET")
			}

			svc, err := auth.NewJWTService(config.AuthConfig{
				JWTSecret:            secret,
				TokenLifetimeMinutes: ttlMinutes,
			})
			if err != nil {
				return fmt.Errorf("failed to create token service: %w", err)
			}

			token, err := svc.GenerateToken(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	issueCmd.Flags().StringVar(&userID, "user", "", "user ID the token is issued for")
	issueCmd.Flags().IntVar(&ttlMinutes, "ttl", 60, "token lifetime in minutes")
	issueCmd.Flags().String("secret", "", "JWT signing secret")
	_ = issueCmd.MarkFlagRequired("user")
	_ = v.BindPFlag(keyJWTSecret, issueCmd.Flags().Lookup("secret"))

	tokenCmd.AddCommand(issueCmd)
	return tokenCmd
}
