package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{raw: "pending", want: StatusPending},
		{raw: "in_progress", want: StatusInProgress},
		{raw: "completed", want: StatusCompleted},
		{raw: "cancelled", want: StatusCancelled},
		{raw: "PENDING", wantErr: true},
		{raw: "all", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePriority(t *testing.T) {
	for _, raw := range []string{"low", "medium", "high"} {
		p, err := ParsePriority(raw)
		require.NoError(t, err)
		assert.Equal(t, Priority(raw), p)
	}

	_, err := ParsePriority("urgent")
	assert.ErrorIs(t, err, ErrInvalidPriority)
}

func TestJobDraft_WithDefaults(t *testing.T) {
	d := JobDraft{CustomerName: "Alice"}.WithDefaults()

	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, PriorityMedium, d.Priority)
	assert.NotNil(t, d.Images)

	kept := JobDraft{Status: StatusCompleted, Priority: PriorityHigh}.WithDefaults()
	assert.Equal(t, StatusCompleted, kept.Status)
	assert.Equal(t, PriorityHigh, kept.Priority)
}

func TestJobPatch_Apply(t *testing.T) {
	cost := 10.5
	job := RepairJob{
		ID:            7,
		CustomerName:  "Alice",
		DeviceType:    "laptop",
		DeviceModel:   "X1",
		Status:        StatusPending,
		Priority:      PriorityMedium,
		EstimatedCost: &cost,
		Images:        []string{"/uploads/a.png"},
	}

	status := StatusCompleted
	images := []string{}
	patched := JobPatch{Status: &status, Images: &images}.Apply(job)

	assert.Equal(t, StatusCompleted, patched.Status)
	assert.Empty(t, patched.Images)
	assert.Equal(t, "Alice", patched.CustomerName)
	require.NotNil(t, patched.EstimatedCost)
	assert.Equal(t, 10.5, *patched.EstimatedCost)

	// the original is untouched
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, []string{"/uploads/a.png"}, job.Images)
}

func TestJobPatch_OmitsNilFields(t *testing.T) {
	status := StatusInProgress
	b, err := json.Marshal(JobPatch{Status: &status})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"in_progress"}`, string(b))
}

func TestRepairJob_CloneIsDeep(t *testing.T) {
	notes := "fragile"
	job := RepairJob{Images: []string{"a"}, Notes: &notes}
	clone := job.Clone()

	clone.Images[0] = "b"
	*clone.Notes = "changed"

	assert.Equal(t, "a", job.Images[0])
	assert.Equal(t, "fragile", *job.Notes)
}

func TestCountJobs(t *testing.T) {
	jobs := []RepairJob{
		{ID: 1, Status: StatusPending},
		{ID: 2, Status: StatusPending},
		{ID: 3, Status: StatusInProgress},
		{ID: 4, Status: StatusCompleted},
		{ID: 5, Status: StatusCancelled},
	}

	assert.Equal(t, Counts{Pending: 2, InProgress: 1, Completed: 1, Cancelled: 1, Total: 5}, CountJobs(jobs))
	assert.Equal(t, Counts{}, CountJobs(nil))
}

func TestReleasedImages(t *testing.T) {
	tests := []struct {
		name   string
		before []string
		after  []string
		want   []string
	}{
		{name: "nothing removed", before: []string{"a", "b"}, after: []string{"a", "b", "c"}, want: nil},
		{name: "one removed", before: []string{"a", "b"}, after: []string{"b"}, want: []string{"a"}},
		{name: "all removed", before: []string{"a", "b"}, after: nil, want: []string{"a", "b"}},
		{name: "reordered", before: []string{"a", "b"}, after: []string{"b", "a"}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReleasedImages(tt.before, tt.after))
		})
	}
}
