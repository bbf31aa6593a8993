// Package realtime implements the subcommand that runs the attendance engine.
package realtime

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/rollcall"
)

// Command creates the realtime command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Mark attendance in realtime mode",
		Long:  "Start capturing from the shared camera and marking attendance as faces are recognized.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rollcall.Realtime(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Camera.Device, "device", viper.GetInt("camera.device"), "Capture device index, 0 is the system default camera")
	cmd.Flags().StringVar(&settings.Realtime.RollCall.Group, "group", viper.GetString("realtime.rollcall.group"), "Group tag to preload into a subset session at startup")
	cmd.Flags().BoolVar(&settings.Realtime.RollCall.OpenEnabled, "open", viper.GetBool("realtime.rollcall.openenabled"), "Start an open roll call session at startup")
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port for the web API")
	cmd.Flags().StringVar(&settings.Realtime.Log.Path, "logpath", viper.GetString("realtime.log.path"), "Path to save the attendance event log")
	cmd.Flags().BoolVar(&settings.Realtime.Telemetry.Enabled, "telemetry", viper.GetBool("realtime.telemetry.enabled"), "Enable Prometheus telemetry endpoint")
	cmd.Flags().StringVar(&settings.Realtime.Telemetry.Listen, "listen", viper.GetString("realtime.telemetry.listen"), "Listen address and port of telemetry endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
