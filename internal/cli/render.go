package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cuongbtq/repair-tracker/internal/domain"
)

type listOutput struct {
	Status string             `json:"status"`
	Search string             `json:"search"`
	Counts domain.Counts      `json:"counts"`
	Jobs   []domain.RepairJob `json:"jobs"`
}

func renderCounts(w io.Writer, c domain.Counts) {
	fmt.Fprintf(w, "Total: %d  Pending: %d  In progress: %d  Completed: %d\n",
		c.Total, c.Pending, c.InProgress, c.Completed)
}

func renderJobs(w io.Writer, jobs []domain.RepairJob) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No repair jobs found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tDEVICE\tSTATUS\tPRIORITY\tEST. COST\tIMAGES\tCREATED")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			j.ID,
			j.CustomerName,
			strings.TrimSpace(j.DeviceType+" "+j.DeviceModel),
			j.Status,
			j.Priority,
			formatCost(j.EstimatedCost),
			len(j.Images),
			formatDate(j),
		)
	}
	return tw.Flush()
}

func renderJob(w io.Writer, j domain.RepairJob) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", j.ID)
	fmt.Fprintf(tw, "Customer:\t%s\n", j.CustomerName)
	fmt.Fprintf(tw, "Device:\t%s %s\n", j.DeviceType, j.DeviceModel)
	fmt.Fprintf(tw, "Issue:\t%s\n", j.IssueDescription)
	fmt.Fprintf(tw, "Status:\t%s\n", j.Status)
	fmt.Fprintf(tw, "Priority:\t%s\n", j.Priority)
	fmt.Fprintf(tw, "Estimated cost:\t%s\n", formatCost(j.EstimatedCost))
	fmt.Fprintf(tw, "Actual cost:\t%s\n", formatCost(j.ActualCost))
	if j.Notes != nil && *j.Notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", *j.Notes)
	}
	for i, img := range j.Images {
		fmt.Fprintf(tw, "Image %d:\t%s\n", i, img)
	}
	fmt.Fprintf(tw, "Created:\t%s\n", formatDate(j))
	return tw.Flush()
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCost(v *float64) string {
	if v == nil {
		return "-"
	}
	return "$" + strconv.FormatFloat(*v, 'f', 2, 64)
}

func formatDate(j domain.RepairJob) string {
	if j.CreatedAt.IsZero() {
		return "-"
	}
	return j.CreatedAt.Format("2006-01-02")
}
