package joblist

import (
	"strings"

	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// FilterAll is the status filter that lets every status through
const FilterAll = "all"

// ValidFilter reports whether value is FilterAll or a job status
func ValidFilter(value string) bool {
	return value == FilterAll || domain.Status(value).Valid()
}

// Matches reports whether job passes the status filter and search term.
// The term matches case-insensitively anywhere in the customer name,
// device type or device model.
func Matches(job domain.RepairJob, status, term string) bool {
	if status != FilterAll && string(job.Status) != status {
		return false
	}
	if term == "" {
		return true
	}

	term = strings.ToLower(term)
	return strings.Contains(strings.ToLower(job.CustomerName), term) ||
		strings.Contains(strings.ToLower(job.DeviceType), term) ||
		strings.Contains(strings.ToLower(job.DeviceModel), term)
}

// Filter returns copies of the jobs that match, in their original order
func Filter(jobs []domain.RepairJob, status, term string) []domain.RepairJob {
	out := make([]domain.RepairJob, 0, len(jobs))
	for _, j := range jobs {
		if Matches(j, status, term) {
			out = append(out, j.Clone())
		}
	}
	return out
}
