package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobsDeleteCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a repair job",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, job, err := app.loadJob(cmd, args[0])
			if err != nil {
				return err
			}

			if !yes {
				ok, err := app.confirm(fmt.Sprintf("Delete job #%d (%s, %s %s)?",
					job.ID, job.CustomerName, job.DeviceType, job.DeviceModel))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(app.out, "Cancelled")
					return nil
				}
			}

			if err := mgr.Remove(cmd.Context(), job.ID); err != nil {
				return err
			}

			fmt.Fprintf(app.out, "Deleted job #%d\n", job.ID)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}
