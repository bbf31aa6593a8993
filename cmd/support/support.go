// Package support implements the subcommand that collects a
// diagnostics archive for troubleshooting.
package support

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/support"
)

// Command creates the support parent command.
func Command(settings *conf.Settings) *cobra.Command {
	supportCmd := &cobra.Command{
		Use:   "support",
		Short: "Support and troubleshooting operations",
	}
	supportCmd.AddCommand(collectCommand(settings))
	return supportCmd
}

func collectCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Collect system diagnostics for troubleshooting",
		Long:  "Gather scrubbed configuration, recent logs, and host details into a zip archive safe to attach to a bug report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Collecting support data...")

			configDir := "."
			if paths, err := conf.GetDefaultConfigPaths(); err == nil && len(paths) > 0 {
				configDir = paths[0]
			}

			systemID := settings.SystemID
			if systemID == "" {
				systemID = "unknown"
			}

			collector := support.NewCollector(configDir, ".", systemID, settings.Version)
			opts := support.DefaultCollectorOptions()

			dump, err := collector.Collect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			archive, err := collector.CreateArchive(dump, opts)
			if err != nil {
				return err
			}

			filename := fmt.Sprintf("faceroll-support-%s.zip", dump.ID)
			if err := os.WriteFile(filename, archive, 0o600); err != nil {
				return err
			}
			fmt.Printf("Support data collected and saved to %s\n", filename)
			return nil
		},
	}
}
