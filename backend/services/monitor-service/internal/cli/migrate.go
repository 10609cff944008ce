package cli

import (
	"github.com/spf13/cobra"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/logging"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/db"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)

	migrateDownCmd.Flags().IntP("steps", "s", 1, "Number of down migrations to run")
	migrateDownCmd.Flags().Bool("all", false, "Roll back every migration")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage Postgres migrations",
	Long: `Subcommands for the embedded Postgres migrations. The connection string is
read from $MONITOR_POSTGRES_DSN.

Up migrations can also run on boot with database.autoMigrate.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run up migrations against Postgres",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := getFromEnv(DatabaseURLKey)
		if err != nil {
			return err
		}

		logger, err := logging.NewLogger(BinaryName)
		if err != nil {
			return err
		}
		defer logger.Sync()

		sqlDB, err := db.NewPostgres(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return db.MigrateUp(sqlDB, logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Run down migrations against Postgres",
	Long: `Rolls back migrations: one step by default, --steps N for more, or --all
to drop the whole schema.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := getFromEnv(DatabaseURLKey)
		if err != nil {
			return err
		}

		steps, err := cmd.Flags().GetInt("steps")
		if err != nil {
			return err
		}
		all, err := cmd.Flags().GetBool("all")
		if err != nil {
			return err
		}

		logger, err := logging.NewLogger(BinaryName)
		if err != nil {
			return err
		}
		defer logger.Sync()

		sqlDB, err := db.NewPostgres(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		return db.MigrateDown(sqlDB, steps, all, logger)
	},
}
