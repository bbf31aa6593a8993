// Package warm implements the subcommand that derives every face
// descriptor up front so realtime sessions start with a hot cache.
package warm

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
	"github.com/campuskit/faceroll/internal/roster"
)

const component = "warm"

// Command creates the warm command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "warm",
		Short: "Derive and cache all face descriptors",
		Long:  "Load every enrollment photo, derive its face descriptor, and store it so sessions skip the slow first load.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings)
		},
	}
}

func run(ctx context.Context, settings *conf.Settings) error {
	store := datastore.New(settings)
	if store == nil {
		return errors.Newf("no database output enabled, enable sqlite or mysql").
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recognizer, err := facerec.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = recognizer.Close() }()

	people, err := store.ListPeople(ctx)
	if err != nil {
		return err
	}
	if len(people) == 0 {
		fmt.Println("No people enrolled yet, nothing to warm.")
		return nil
	}

	bar := progressbar.NewOptions(len(people),
		progressbar.OptionSetDescription("Deriving descriptors"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("people"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	stats, err := roster.New(store, recognizer).Warm(ctx, func() {
		_ = bar.Add(1)
	})
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Warmed %d of %d descriptors", stats.Ready, stats.Total)
	if stats.Skipped > 0 {
		fmt.Printf(", skipped %d (missing photo or no face found)", stats.Skipped)
	}
	fmt.Println()
	return nil
}
