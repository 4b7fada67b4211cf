package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a repair job
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every valid status in display order
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the enumerated statuses
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a raw value into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
	}
	return s, nil
}

// Priority is how urgently a repair job should be handled
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the enumerated priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority converts a raw value into a Priority
func ParsePriority(raw string) (Priority, error) {
	p := Priority(raw)
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return p, nil
}

// RepairJob is a repair ticket as returned by the API
type RepairJob struct {
	ID               int64     `json:"id"`
	CustomerName     string    `json:"customer_name"`
	DeviceType       string    `json:"device_type"`
	DeviceModel      string    `json:"device_model"`
	IssueDescription string    `json:"issue_description"`
	Status           Status    `json:"status"`
	Priority         Priority  `json:"priority"`
	EstimatedCost    *float64  `json:"estimated_cost"`
	ActualCost       *float64  `json:"actual_cost"`
	Notes            *string   `json:"notes"`
	Images           []string  `json:"images"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate cached records
func (j RepairJob) Clone() RepairJob {
	out := j
	out.Images = append([]string{}, j.Images...)
	if j.EstimatedCost != nil {
		v := *j.EstimatedCost
		out.EstimatedCost = &v
	}
	if j.ActualCost != nil {
		v := *j.ActualCost
		out.ActualCost = &v
	}
	if j.Notes != nil {
		v := *j.Notes
		out.Notes = &v
	}
	return out
}

// JobDraft is the payload for POST /repair-jobs
type JobDraft struct {
	CustomerName     string   `json:"customer_name" binding:"required"`
	DeviceType       string   `json:"device_type" binding:"required"`
	DeviceModel      string   `json:"device_model" binding:"required"`
	IssueDescription string   `json:"issue_description" binding:"required"`
	Status           Status   `json:"status,omitempty" binding:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority         Priority `json:"priority,omitempty" binding:"omitempty,oneof=low medium high"`
	EstimatedCost    *float64 `json:"estimated_cost,omitempty" binding:"omitempty,gte=0"`
	ActualCost       *float64 `json:"actual_cost,omitempty" binding:"omitempty,gte=0"`
	Notes            *string  `json:"notes,omitempty"`
	Images           []string `json:"images"`
}

// WithDefaults fills status and priority the way the backend does
func (d JobDraft) WithDefaults() JobDraft {
	if d.Status == "" {
		d.Status = StatusPending
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	if d.Images == nil {
		d.Images = []string{}
	}
	return d
}

// JobPatch is the payload for PUT /repair-jobs/{id}. Nil fields keep
// their stored value.
type JobPatch struct {
	CustomerName     *string   `json:"customer_name,omitempty" binding:"omitempty,min=1"`
	DeviceType       *string   `json:"device_type,omitempty" binding:"omitempty,min=1"`
	DeviceModel      *string   `json:"device_model,omitempty" binding:"omitempty,min=1"`
	IssueDescription *string   `json:"issue_description,omitempty" binding:"omitempty,min=1"`
	Status           *Status   `json:"status,omitempty" binding:"omitempty,oneof=pending in_progress completed cancelled"`
	Priority         *Priority `json:"priority,omitempty" binding:"omitempty,oneof=low medium high"`
	EstimatedCost    *float64  `json:"estimated_cost,omitempty" binding:"omitempty,gte=0"`
	ActualCost       *float64  `json:"actual_cost,omitempty" binding:"omitempty,gte=0"`
	Notes            *string   `json:"notes,omitempty"`
	Images           *[]string `json:"images,omitempty"`
}

// Apply returns job with every non-nil patch field written over it
func (p JobPatch) Apply(job RepairJob) RepairJob {
	out := job.Clone()
	if p.CustomerName != nil {
		out.CustomerName = *p.CustomerName
	}
	if p.DeviceType != nil {
		out.DeviceType = *p.DeviceType
	}
	if p.DeviceModel != nil {
		out.DeviceModel = *p.DeviceModel
	}
	if p.IssueDescription != nil {
		out.IssueDescription = *p.IssueDescription
	}
	if p.Status != nil {
		out.Status = *p.Status
	}
	if p.Priority != nil {
		out.Priority = *p.Priority
	}
	if p.EstimatedCost != nil {
		out.EstimatedCost = p.EstimatedCost
	}
	if p.ActualCost != nil {
		out.ActualCost = p.ActualCost
	}
	if p.Notes != nil {
		out.Notes = p.Notes
	}
	if p.Images != nil {
		out.Images = append([]string{}, (*p.Images)...)
	}
	return out
}

// Counts holds the per-status totals shown above the job list
type Counts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// CountJobs reduces jobs into Counts
func CountJobs(jobs []RepairJob) Counts {
	c := Counts{Total: len(jobs)}
	for _, j := range jobs {
		switch j.Status {
		case StatusPending:
			c.Pending++
		case StatusInProgress:
			c.InProgress++
		case StatusCompleted:
			c.Completed++
		case StatusCancelled:
			c.Cancelled++
		}
	}
	return c
}

// ReleasedImages returns the URLs present in before but absent from after
func ReleasedImages(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var released []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			released = append(released, u)
		}
	}
	return released
}
