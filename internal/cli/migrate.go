package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx database/sql driver
	"github.com/phrazzld/dayplan-api/internal/config"
	"github.com/phrazzld/dayplan-api/internal/platform/logger"
	"github.com/phrazzld/dayplan-api/internal/platform/postgres"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCommands = []string{"up", "down", "status", "version", "reset"}

func newMigrateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate up|down|status|version|reset",
		Short:     "Apply or inspect the database schema",
		Long:      "Run a schema migration command. The database is read from --database-url or DAYPLAN_DATABASE_URL.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := args[0]
			if !slices.Contains(migrateCommands, command) {
				return fmt.Errorf("unknown migration command %q", command)
			}

			dsn := v.GetString(keyDatabaseURL)
			if dsn == "" {
				return errors.New("no database: set --database-url or DAYPLAN_DATABASE_URL")
			}

			log, err := logger.SetupWithWriter(config.ServerConfig{LogLevel: "info"}, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			db, err := sql.Open("pgx", dsn)
			if err != nil {
				return fmt.Errorf("failed to open database connection: %w", err)
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
	cmd.Flags().String("database-url", "", "Postgres connection URL")
	_ = v.BindPFlag(keyDatabaseURL, cmd.Flags().Lookup("database-url"))
	return cmd
}
