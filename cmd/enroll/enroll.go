// Package enroll implements the subcommand that registers people and
// their enrollment photos.
package enroll

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/datastore"
	"github.com/campuskit/faceroll/internal/errors"
	"github.com/campuskit/faceroll/internal/facerec"
)

const component = "enroll"

type options struct {
	regNo  string
	name   string
	group  string
	mobile string
	photo  string
	remove bool
}

// Command creates the enroll command.
func Command(settings *conf.Settings) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Register or update a person",
		Long:  "Create or update a roster entry and derive its face descriptor from the enrollment photo.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), settings, opts)
		},
	}

	cmd.Flags().StringVar(&opts.regNo, "regno", "", "Registration number (required)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Full name")
	cmd.Flags().StringVar(&opts.group, "group", "", "Group tag")
	cmd.Flags().StringVar(&opts.mobile, "mobile", "", "Mobile number")
	cmd.Flags().StringVar(&opts.photo, "photo", "", "Path to the enrollment photo")
	cmd.Flags().BoolVar(&opts.remove, "remove", false, "Remove the person instead of enrolling")
	_ = cmd.MarkFlagRequired("regno")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, opts *options) error {
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

	if opts.remove {
		return removePerson(ctx, store, opts.regNo)
	}
	return enrollPerson(ctx, settings, store, opts)
}

func removePerson(ctx context.Context, store datastore.Interface, regNo string) error {
	person, err := store.GetPersonByRegNo(ctx, regNo)
	if err != nil {
		return err
	}
	if err := store.DeletePerson(ctx, person.ID); err != nil {
		return err
	}
	fmt.Printf("Removed %s (%s). Attendance history is retained.\n", person.Name, person.RegNo)
	return nil
}

func enrollPerson(ctx context.Context, settings *conf.Settings, store datastore.Interface, opts *options) error {
	person, err := store.GetPersonByRegNo(ctx, opts.regNo)
	switch {
	case err == nil:
	case errors.IsCategory(err, errors.CategoryNotFound):
		if opts.name == "" || opts.photo == "" {
			return errors.Newf("a new enrollment needs --name and --photo").
				Component(component).
				Category(errors.CategoryValidation).
				Context("reg_no", opts.regNo).
				Build()
		}
		person = datastore.Person{RegNo: opts.regNo}
	default:
		return err
	}

	if opts.name != "" {
		person.Name = opts.name
	}
	if opts.group != "" {
		person.GroupTag = opts.group
	}
	if opts.mobile != "" {
		person.Mobile = opts.mobile
	}

	photoChanged := opts.photo != "" && opts.photo != person.PhotoPath
	if photoChanged {
		person.PhotoPath = opts.photo
	}

	created := person.ID == 0
	if err := store.SavePerson(ctx, &person); err != nil {
		return err
	}

	if photoChanged {
		if !created {
			// A stale descriptor must not outlive the photo it came from.
			if err := store.ClearEmbedding(ctx, person.ID); err != nil {
				return err
			}
		}
		if err := deriveDescriptor(ctx, settings, store, &person); err != nil {
			fmt.Printf("Descriptor not derived: %v\n", err)
			fmt.Println("Run \"faceroll warm\" once the photo or model files are fixed.")
		} else {
			fmt.Println("Face descriptor derived and cached.")
		}
	}

	if created {
		fmt.Printf("Enrolled %s (%s)\n", person.Name, person.RegNo)
	} else {
		fmt.Printf("Updated %s (%s)\n", person.Name, person.RegNo)
	}
	return nil
}

func deriveDescriptor(ctx context.Context, settings *conf.Settings, store datastore.Interface, person *datastore.Person) error {
	photo, err := os.ReadFile(person.PhotoPath)
	if err != nil {
		return err
	}

	recognizer, err := facerec.New(settings)
	if err != nil {
		return err
	}
	defer func() { _ = recognizer.Close() }()

	descriptor, err := recognizer.EmbedPhoto(photo)
	if err != nil {
		return err
	}
	return store.SetEmbedding(ctx, person.ID, facerec.EncodeDescriptor(descriptor))
}
