package cli

import (
	"fmt"
	"strconv"

	"github.com/cuongbtq/repair-tracker/internal/client/joblist"
	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/spf13/cobra"
)

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Aliases: []string{"job"},
		Short:   "List and manage repair jobs",
	}

	cmd.AddCommand(
		newJobsListCmd(app),
		newJobsShowCmd(app),
		newJobsCreateCmd(app),
		newJobsEditCmd(app),
		newJobsDeleteCmd(app),
	)
	return cmd
}

func newJobsListCmd(app *App) *cobra.Command {
	var (
		search string
		status string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your repair jobs with per-status counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, _, err := app.manager()
			if err != nil {
				return err
			}

			if err := mgr.SetStatusFilter(status); err != nil {
				return err
			}
			mgr.SetSearchTerm(search)

			if err := mgr.Load(cmd.Context()); err != nil {
				return err
			}

			if asJSON {
				return renderJSON(app.out, listOutput{
					Status: status,
					Search: search,
					Counts: mgr.Counts(),
					Jobs:   mgr.VisibleJobs(),
				})
			}

			renderCounts(app.out, mgr.Counts())
			fmt.Fprintln(app.out)
			return renderJobs(app.out, mgr.VisibleJobs())
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Match customer name, device type or model")
	cmd.Flags().StringVar(&status, "status", joblist.FilterAll, "Filter by status: all, pending, in_progress, completed, cancelled")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newJobsShowCmd(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one repair job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, job, err := app.loadJob(cmd, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return renderJSON(app.out, job)
			}
			return renderJob(app.out, job)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

// loadJob fetches the caller's jobs and picks out the one named by raw
func (a *App) loadJob(cmd *cobra.Command, raw string) (*joblist.Manager, domain.RepairJob, error) {
	id, err := parseID(raw)
	if err != nil {
		return nil, domain.RepairJob{}, err
	}

	mgr, _, err := a.manager()
	if err != nil {
		return nil, domain.RepairJob{}, err
	}

	if err := mgr.Load(cmd.Context()); err != nil {
		return nil, domain.RepairJob{}, err
	}

	job, ok := mgr.Job(id)
	if !ok {
		return nil, domain.RepairJob{}, fmt.Errorf("%w: #%d", domain.ErrJobNotFound, id)
	}
	return mgr, job, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}
