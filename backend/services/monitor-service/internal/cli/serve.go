package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/logging"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/app"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/config"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the API and live channel",
	Long: `Starts the HTTP API. Configuration is read from the YAML file named by
$CONFIG_FILE and then from MONITOR_* environment variables.

When database.autoMigrate is set, up migrations run before the server starts
listening. When mqtt.broker is set, readings published on mqtt.topic are
ingested alongside the HTTP endpoint.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		logger, err := logging.NewLogger(BinaryName)
		if err != nil {
			return err
		}
		defer logger.Sync() // best-effort flush

		ctx := cmd.Context()
		application, err := app.New(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize application", zap.Error(err))
			return err
		}
		defer application.Close()

		if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("application stopped with error", zap.Error(err))
			return err
		}
		return nil
	},
}
