package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/cuongbtq/repair-tracker/internal/client/api"
	"github.com/cuongbtq/repair-tracker/internal/client/draft"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/spf13/cobra"
)

// jobFlags are shared by create and edit. Only flags the user set are
// copied onto the draft.
type jobFlags struct {
	customer      string
	deviceType    string
	deviceModel   string
	issue         string
	status        string
	priority      string
	estimatedCost float64
	actualCost    float64
	notes         string
	images        []string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.customer, "customer", "", "Customer name")
	flags.StringVar(&f.deviceType, "device-type", "", "Device type, e.g. Phone")
	flags.StringVar(&f.deviceModel, "model", "", "Device model")
	flags.StringVar(&f.issue, "issue", "", "Issue description")
	flags.StringVar(&f.status, "status", "", "Status: pending, in_progress, completed, cancelled")
	flags.StringVar(&f.priority, "priority", "", "Priority: low, medium, high")
	flags.Float64Var(&f.estimatedCost, "estimated-cost", 0, "Estimated cost")
	flags.Float64Var(&f.actualCost, "actual-cost", 0, "Actual cost")
	flags.StringVar(&f.notes, "notes", "", "Free-form notes")
	flags.StringArrayVar(&f.images, "image", nil, "Image file to upload and attach (repeatable)")
}

func (f *jobFlags) apply(cmd *cobra.Command, d *draft.Draft) {
	flags := cmd.Flags()
	if flags.Changed("customer") {
		d.CustomerName = f.customer
	}
	if flags.Changed("device-type") {
		d.DeviceType = f.deviceType
	}
	if flags.Changed("model") {
		d.DeviceModel = f.deviceModel
	}
	if flags.Changed("issue") {
		d.IssueDescription = f.issue
	}
	if flags.Changed("status") {
		d.Status = domain.Status(f.status)
	}
	if flags.Changed("priority") {
		d.Priority = domain.Priority(f.priority)
	}
	if flags.Changed("estimated-cost") {
		v := f.estimatedCost
		d.EstimatedCost = &v
	}
	if flags.Changed("actual-cost") {
		v := f.actualCost
		d.ActualCost = &v
	}
	if flags.Changed("notes") {
		v := f.notes
		d.Notes = &v
	}
}

// uploadImages sends the named files in one request and attaches the
// returned URLs to d in the same order.
func uploadImages(ctx context.Context, d *draft.Draft, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	files := make([]api.File, 0, len(paths))
	var handles []*os.File
	defer func() {
		for _, h := range handles {
			h.Close()
		}
	}()

	for _, p := range paths {
		h, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("failed to open image: %w", err)
		}
		handles = append(handles, h)
		files = append(files, api.File{Name: filepath.Base(p), Reader: h})
	}

	if _, err := d.Upload(ctx, files); err != nil {
		return fmt.Errorf("failed to upload images: %w", err)
	}
	return nil
}

func newJobsEditCmd(app *App) *cobra.Command {
	var (
		f      jobFlags
		remove []int
	)

	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Change a repair job",
		Long: "Change a repair job. Only the given flags are changed. Image indexes\n" +
			"for --remove-image are the ones shown by `repairctl jobs show`.\n\n" +
			"Estimated cost, actual cost and notes cannot be cleared once set; the\n" +
			"API keeps the stored value when a field is left out. Set them to 0 or\n" +
			"an empty string instead.\n\n" +
			"New --image files are uploaded before the job is saved. If the save\n" +
			"fails they stay on the server unattached and are not cleaned up.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, job, err := app.loadJob(cmd, args[0])
			if err != nil {
				return err
			}
			s, err := app.requireSession()
			if err != nil {
				return err
			}

			d := draft.FromJob(job, app.client, s)
			f.apply(cmd, d)

			// highest index first so earlier removals do not shift later ones
			slices.Sort(remove)
			remove = slices.Compact(remove)
			for i := len(remove) - 1; i >= 0; i-- {
				if err := d.RemoveAt(remove[i]); err != nil {
					if errors.Is(err, draft.ErrImageIndex) {
						return fmt.Errorf("%w: %d", err, remove[i])
					}
					return err
				}
			}

			if err := d.Validate(); err != nil {
				return err
			}
			if err := uploadImages(cmd.Context(), d, f.images); err != nil {
				return err
			}

			updated, err := mgr.Update(cmd.Context(), job.ID, d.Patch())
			if err != nil {
				if len(f.images) > 0 {
					return fmt.Errorf("job not saved, %d uploaded image(s) left unattached: %w", len(f.images), err)
				}
				return err
			}

			fmt.Fprintf(app.out, "Updated job #%d\n", updated.ID)
			return renderJob(app.out, updated)
		},
	}

	f.register(cmd)
	cmd.Flags().IntSliceVar(&remove, "remove-image", nil, "Index of an attached image to detach (repeatable)")
	return cmd
}
