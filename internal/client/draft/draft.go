// Package draft holds an unsaved repair job being created or edited,
// including the images attached to it so far.
package draft

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuongbtq/repair-tracker/internal/client/api"
	"github.com/cuongbtq/repair-tracker/internal/client/form"
	"github.com/cuongbtq/repair-tracker/internal/client/session"
	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// ErrImageIndex is returned by RemoveAt for positions outside the image list
var ErrImageIndex = errors.New("image index out of range")

// Uploader is satisfied by *api.Client
type Uploader interface {
	Upload(ctx context.Context, token string, files []api.File) ([]string, error)
}

// Draft is safe for concurrent use; only the image list needs the lock,
// the plain fields belong to whoever edits the draft.
type Draft struct {
	JobID            int64
	CustomerName     string
	DeviceType       string
	DeviceModel      string
	IssueDescription string
	Status           domain.Status
	Priority         domain.Priority
	EstimatedCost    *float64
	ActualCost       *float64
	Notes            *string

	uploader Uploader
	session  *session.Session

	mu     sync.Mutex
	images []string
}

// New starts an empty draft with the default status and priority
func New(uploader Uploader, sess *session.Session) *Draft {
	return &Draft{
		Status:   domain.StatusPending,
		Priority: domain.PriorityMedium,
		uploader: uploader,
		session:  sess,
		images:   []string{},
	}
}

// FromJob starts a draft holding job's current values
func FromJob(job domain.RepairJob, uploader Uploader, sess *session.Session) *Draft {
	job = job.Clone()
	return &Draft{
		JobID:            job.ID,
		CustomerName:     job.CustomerName,
		DeviceType:       job.DeviceType,
		DeviceModel:      job.DeviceModel,
		IssueDescription: job.IssueDescription,
		Status:           job.Status,
		Priority:         job.Priority,
		EstimatedCost:    job.EstimatedCost,
		ActualCost:       job.ActualCost,
		Notes:            job.Notes,
		uploader:         uploader,
		session:          sess,
		images:           job.Images,
	}
}

// Images returns a copy of the attached image URLs in upload order
func (d *Draft) Images() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.images...)
}

// Upload sends all files in one request and appends the returned URLs in
// the order the backend reports them. On failure the list is unchanged.
func (d *Draft) Upload(ctx context.Context, files []api.File) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}

	token, err := d.session.Token()
	if err != nil {
		return nil, err
	}

	urls, err := d.uploader.Upload(ctx, token, files)
	if err != nil {
		return nil, fmt.Errorf("failed to upload images: %w", err)
	}

	d.mu.Lock()
	d.images = append(d.images, urls...)
	d.mu.Unlock()

	return urls, nil
}

// RemoveAt drops the image at index from this draft only. The stored file
// is left alone; the backend releases it once the job is saved without it.
func (d *Draft) RemoveAt(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= len(d.images) {
		return fmt.Errorf("%w: %d (have %d)", ErrImageIndex, index, len(d.images))
	}

	d.images = append(d.images[:index:index], d.images[index+1:]...)
	return nil
}

// Values returns the fields in the shape form.Job checks
func (d *Draft) Values() form.Values {
	v := form.Values{
		"customer_name":     d.CustomerName,
		"device_type":       d.DeviceType,
		"device_model":      d.DeviceModel,
		"issue_description": d.IssueDescription,
		"status":            string(d.Status),
		"priority":          string(d.Priority),
	}
	if d.EstimatedCost != nil {
		v["estimated_cost"] = *d.EstimatedCost
	}
	if d.ActualCost != nil {
		v["actual_cost"] = *d.ActualCost
	}
	return v
}

// Validate checks the draft against form.Job. The error is a
// form.FieldErrors when validation fails.
func (d *Draft) Validate() error {
	return form.Job.Validate(d.Values())
}

// CreatePayload builds the body of POST /repair-jobs
func (d *Draft) CreatePayload() domain.JobDraft {
	return domain.JobDraft{
		CustomerName:     d.CustomerName,
		DeviceType:       d.DeviceType,
		DeviceModel:      d.DeviceModel,
		IssueDescription: d.IssueDescription,
		Status:           d.Status,
		Priority:         d.Priority,
		EstimatedCost:    copyFloat(d.EstimatedCost),
		ActualCost:       copyFloat(d.ActualCost),
		Notes:            copyString(d.Notes),
		Images:           d.Images(),
	}
}

// Patch builds the body of PUT /repair-jobs/{id}. Every field is sent;
// unset optional fields are left out and keep their stored value.
func (d *Draft) Patch() domain.JobPatch {
	images := d.Images()
	status := d.Status
	priority := d.Priority
	customer := d.CustomerName
	deviceType := d.DeviceType
	model := d.DeviceModel
	issue := d.IssueDescription

	return domain.JobPatch{
		CustomerName:     &customer,
		DeviceType:       &deviceType,
		DeviceModel:      &model,
		IssueDescription: &issue,
		Status:           &status,
		Priority:         &priority,
		EstimatedCost:    copyFloat(d.EstimatedCost),
		ActualCost:       copyFloat(d.ActualCost),
		Notes:            copyString(d.Notes),
		Images:           &images,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
