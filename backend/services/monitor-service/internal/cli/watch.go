package cli

import (
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	"github.com/juandiegombr/daw.pi.iiava/backend/libs/logging"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/client"
	"github.com/juandiegombr/daw.pi.iiava/backend/services/monitor-service/internal/reconciler"
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("url", "http://localhost:3000/api", "Base URL of the monitor API")
	watchCmd.Flags().Int64("sensor", 0, "Sensor id whose readings are listed as they arrive")
	watchCmd.Flags().String("token", "", "Bearer token sent with every request")
	watchCmd.Flags().Bool("notify", true, "Mirror alerts to desktop notifications when available")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live readings and alerts in the terminal",
	Long: `Subscribes to the live channel of a running server and prints a line for
every notification a dashboard would show. With --sensor the sensor's readings
are loaded first and each new one is printed as it arrives.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		baseURL, _ := flags.GetString("url")
		sensorID, _ := flags.GetInt64("sensor")
		token, _ := flags.GetString("token")
		notify, _ := flags.GetBool("notify")

		logger, err := logging.NewLogger("monitor-watch")
		if err != nil {
			return err
		}
		defer logger.Sync()

		api := client.New(baseURL, &http.Client{})
		if token != "" {
			api = api.WithToken(token)
		}

		opts := reconciler.Options{
			SensorID: sensorID,
			OnChange: newPrinter(cmd.OutOrStdout(), sensorID),
		}
		if notify {
			opts.Notifier = reconciler.NewDesktopNotifier()
		}

		rec := reconciler.New(api, api, opts, logger)
		defer rec.Close()
		return rec.Run(cmd.Context())
	},
}

// newPrinter writes each new toast once, plus every reading of the watched
// sensor as it arrives.
func newPrinter(out io.Writer, sensorID int64) func(reconciler.State) {
	var (
		mu        sync.Mutex
		lastToast reconciler.Toast
		lastID    int64
	)
	return func(st reconciler.State) {
		mu.Lock()
		defer mu.Unlock()

		if last := st.LastDatapoint; sensorID != 0 && last != nil && last.Datapoint.SensorID == sensorID {
			if dp := last.Datapoint; dp.ID != lastID {
				lastID = dp.ID
				fmt.Fprintf(out, "%s  %s=%s\n", dp.Timestamp.Format("15:04:05"), sensorLabel(st), dp.Value)
			}
		}
		if st.Toast != nil && *st.Toast != lastToast {
			lastToast = *st.Toast
			fmt.Fprintf(out, "[%s] %s\n", st.Toast.Kind, st.Toast.Message)
		}
	}
}

func sensorLabel(st reconciler.State) string {
	if st.Sensor != nil && st.Sensor.Alias != "" {
		return st.Sensor.Alias
	}
	return "value"
}
