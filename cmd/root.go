// Package cmd assembles the faceroll command line interface.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/campuskit/faceroll/cmd/enroll"
	"github.com/campuskit/faceroll/cmd/realtime"
	"github.com/campuskit/faceroll/cmd/support"
	"github.com/campuskit/faceroll/cmd/warm"
	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/logging"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "faceroll",
		Short: "FaceRoll CLI",
		Long:  "Face recognition attendance from a shared classroom camera.",
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		enroll.Command(settings),
		warm.Command(settings),
		support.Command(settings),
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if settings.Debug {
			logging.SetLevel(slog.LevelDebug)
		}
	}

	return rootCmd
}

// setupFlags defines flags global to the command line interface.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().Float64VarP(&settings.Recognition.Tolerance, "tolerance", "t", viper.GetFloat64("recognition.tolerance"), "Maximum descriptor distance for a match, lower is stricter")
	rootCmd.PersistentFlags().StringVar(&settings.Recognition.ModelDir, "modeldir", viper.GetString("recognition.modeldir"), "Directory holding the dlib model files")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
