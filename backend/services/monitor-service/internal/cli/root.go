package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// BinaryName is the name of the executable.
const BinaryName = "monitor-service"

// DatabaseURLKey names the env var holding the Postgres DSN.
const DatabaseURLKey = "MONITOR_POSTGRES_DSN"

var rootCmd = &cobra.Command{
	Use:   BinaryName,
	Short: "Industrial sensor monitoring backend",
	Long: `This tool runs the sensor monitoring API: sensors, their readings and
threshold alert rules, stored in PostgreSQL (or in memory for development).

Every ingested reading is evaluated against the sensor's enabled alert rules
and pushed to live viewers over server-sent events and WebSocket. The watch
command is a terminal client for that live channel.`,
	SilenceUsage: true,
}

// Execute runs the command tree with ctx, which is cancelled on shutdown
// signals.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// getFromEnv emits an error if key is not present in the environment.
func getFromEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required environment variable: $%s", key)
	}
	return val, nil
}
