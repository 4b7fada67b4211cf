package cli

import (
	"fmt"

	"github.com/cuongbtq/repair-tracker/internal/client/draft"
	"github.com/spf13/cobra"
)

func newJobsCreateCmd(app *App) *cobra.Command {
	var f jobFlags

	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"add", "new"},
		Short:   "Create a repair job",
		Example: "  repairctl jobs create --customer Alice --device-type Phone --model \"Pixel 7\" \\\n" +
			"    --issue \"Cracked screen\" --estimated-cost 120 --image front.jpg",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, s, err := app.manager()
			if err != nil {
				return err
			}

			d := draft.New(app.client, s)
			f.apply(cmd, d)

			if err := d.Validate(); err != nil {
				return err
			}
			if err := uploadImages(cmd.Context(), d, f.images); err != nil {
				return err
			}

			job, err := mgr.Create(cmd.Context(), d.CreatePayload())
			if err != nil {
				return err
			}

			fmt.Fprintf(app.out, "Created job #%d\n", job.ID)
			return renderJob(app.out, job)
		},
	}

	f.register(cmd)
	return cmd
}
