// Package cli implements dayplanctl, the operator and client command line for
// the Dayplan API.
package cli

import (
	"strings"

	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	Version = "dev"
	Commit  = "none"
)

// Settings keys. Each is also read from the environment with the DAYPLAN_
// prefix, e.g. DAYPLAN_CLI_TOKEN.
const (
	keyServerURL   = "cli.server"
	keyToken       = "cli.token"
	keyJWTSecret   = "auth.jwt_secret"
	keyDatabaseURL = "database.url"
)

// NewRootCmd builds the dayplanctl command tree. Each call returns an
// independent tree with its own settings.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "dayplanctl",
		Version:       Version,
		Short:         "Manage and inspect Dayplan daily plans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("dayplanctl {{.Version}} (" + Commit + ")\n")

	root.PersistentFlags().String("server", "http://localhost:8080", "Dayplan API base URL")
	root.PersistentFlags().String("token", "", "bearer token for API calls")
	_ = v.BindPFlag(keyServerURL, root.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag(keyToken, root.PersistentFlags().Lookup("token"))

	root.AddCommand(newTokenCmd(v), newPlanCmd(v), newMigrateCmd(v))
	return root
}

// Execute runs dayplanctl with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

func newClientFromSettings(v *viper.Viper) *Client {
	return NewClient(v.GetString(keyServerURL), v.GetString(keyToken), nil)
}
