// Package joblist keeps the signed-in user's repair jobs in memory and
// derives the filtered view and status counts from them. The cache changes
// only after the backend confirms a request.
package joblist

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cuongbtq/repair-tracker/internal/client/session"
	"github.com/cuongbtq/repair-tracker/internal/domain"
)

// Backend is satisfied by *api.Client
type Backend interface {
	ListJobs(ctx context.Context, token string) ([]domain.RepairJob, error)
	CreateJob(ctx context.Context, token string, draft domain.JobDraft) (domain.RepairJob, error)
	UpdateJob(ctx context.Context, token string, id int64, patch domain.JobPatch) (domain.RepairJob, error)
	DeleteJob(ctx context.Context, token string, id int64) error
}

// Manager is safe for concurrent use. The lock is never held while a
// request is in flight, so operations overlap and apply in the order their
// responses arrive. A load snapshot never overwrites a newer load or a
// mutation confirmed after the load was issued.
type Manager struct {
	backend Backend
	session *session.Session
	logger  *slog.Logger

	mu     sync.Mutex
	jobs   []domain.RepairJob
	loaded bool
	search string
	status string
	states map[Op]OpState

	// seq counts issued loads and confirmed mutations
	seq        uint64
	lastLoad   uint64
	lastMutate uint64
}

// New creates an empty manager acting for sess
func New(backend Backend, sess *session.Session, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Manager{
		backend: backend,
		session: sess,
		logger:  logger,
		jobs:    []domain.RepairJob{},
		status:  FilterAll,
		states:  make(map[Op]OpState),
	}
}

// Load replaces the cache with the backend's collection
func (m *Manager) Load(ctx context.Context) error {
	op := Op{Kind: KindLoad}

	token, err := m.begin(op)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.seq++
	seq := m.seq
	m.lastLoad = seq
	m.mu.Unlock()

	jobs, err := m.backend.ListJobs(ctx, token)

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.lastLoad || seq < m.lastMutate {
		m.logger.Debug("Discarded superseded load",
			slog.Uint64("seq", seq),
			slog.Uint64("latest_load", m.lastLoad),
			slog.Uint64("latest_mutation", m.lastMutate),
		)
		if seq == m.lastLoad {
			m.states[op] = OpState{Phase: Idle}
		}
		return ErrSuperseded
	}

	if err != nil {
		return m.failLocked(op, err)
	}

	m.jobs = cloneJobs(jobs)
	m.loaded = true
	m.states[op] = OpState{Phase: Succeeded}

	m.logger.Debug("Loaded jobs", slog.Int("count", len(jobs)))
	return nil
}

// Create sends draft and prepends the stored record
func (m *Manager) Create(ctx context.Context, draft domain.JobDraft) (domain.RepairJob, error) {
	op := Op{Kind: KindCreate}

	token, err := m.begin(op)
	if err != nil {
		return domain.RepairJob{}, err
	}

	job, err := m.backend.CreateJob(ctx, token, draft)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		return domain.RepairJob{}, m.failLocked(op, err)
	}
	if job.ID == 0 {
		return domain.RepairJob{}, m.failLocked(op, ErrMissingRecord)
	}

	// A load that finished in between may already hold the record.
	m.jobs = append([]domain.RepairJob{job.Clone()}, without(m.jobs, job.ID)...)
	m.confirmLocked(op)

	m.logger.Debug("Created job", slog.Int64("job_id", job.ID))
	return job.Clone(), nil
}

// Update sends patch for id and replaces the cached record with the response
func (m *Manager) Update(ctx context.Context, id int64, patch domain.JobPatch) (domain.RepairJob, error) {
	op := Op{Kind: KindUpdate, JobID: id}

	token, err := m.begin(op)
	if err != nil {
		return domain.RepairJob{}, err
	}

	job, err := m.backend.UpdateJob(ctx, token, id, patch)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		return domain.RepairJob{}, m.failLocked(op, err)
	}
	if job.ID != id {
		return domain.RepairJob{}, m.failLocked(op, fmt.Errorf("%w: got id %d", ErrMissingRecord, job.ID))
	}

	for i := range m.jobs {
		if m.jobs[i].ID == id {
			m.jobs[i] = job.Clone()
			break
		}
	}
	m.confirmLocked(op)

	m.logger.Debug("Updated job", slog.Int64("job_id", id))
	return job.Clone(), nil
}

// Remove deletes id at the backend and then drops it from the cache.
// Callers confirm destructive intent before calling.
func (m *Manager) Remove(ctx context.Context, id int64) error {
	op := Op{Kind: KindRemove, JobID: id}

	token, err := m.begin(op)
	if err != nil {
		return err
	}

	err = m.backend.DeleteJob(ctx, token, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		return m.failLocked(op, err)
	}

	m.jobs = without(m.jobs, id)
	m.confirmLocked(op)

	m.logger.Debug("Removed job", slog.Int64("job_id", id))
	return nil
}

// SetSearchTerm sets the free-text search. It never touches the network.
func (m *Manager) SetSearchTerm(text string) {
	m.mu.Lock()
	m.search = text
	m.mu.Unlock()
}

// SetStatusFilter sets the status filter to FilterAll or a job status
func (m *Manager) SetStatusFilter(value string) error {
	if !ValidFilter(value) {
		return ErrInvalidFilter
	}

	m.mu.Lock()
	m.status = value
	m.mu.Unlock()
	return nil
}

// Filters returns the current status filter and search term
func (m *Manager) Filters() (status, search string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.search
}

// VisibleJobs returns the cached jobs that pass the current filters
func (m *Manager) VisibleJobs() []domain.RepairJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Filter(m.jobs, m.status, m.search)
}

// Counts totals the whole cache by status, ignoring the filters
func (m *Manager) Counts() domain.Counts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CountJobs(m.jobs)
}

// Jobs returns a copy of the whole cache
func (m *Manager) Jobs() []domain.RepairJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneJobs(m.jobs)
}

// Job returns the cached record with id
func (m *Manager) Job(id int64) (domain.RepairJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == id {
			return j.Clone(), true
		}
	}
	return domain.RepairJob{}, false
}

// Loaded reports whether a load has ever succeeded
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// State returns the last observed state of op; unseen ops are Idle
func (m *Manager) State(op Op) OpState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[op]
}

// begin reads the session token and marks op in flight
func (m *Manager) begin(op Op) (string, error) {
	token, err := m.session.Token()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		return "", m.failLocked(op, err)
	}
	m.states[op] = OpState{Phase: InFlight}
	return token, nil
}

// confirmLocked marks a mutation applied so loads issued before it are dropped
func (m *Manager) confirmLocked(op Op) {
	m.seq++
	m.lastMutate = m.seq
	m.states[op] = OpState{Phase: Succeeded}
}

func (m *Manager) failLocked(op Op, err error) error {
	opErr := &OpError{Op: op, Err: err}
	m.states[op] = OpState{Phase: Failed, Err: opErr}

	m.logger.Warn("Job operation failed",
		slog.String("op", op.String()),
		slog.Any("error", err),
	)
	return opErr
}

func cloneJobs(jobs []domain.RepairJob) []domain.RepairJob {
	out := make([]domain.RepairJob, len(jobs))
	for i, j := range jobs {
		out[i] = j.Clone()
	}
	return out
}

// without returns jobs minus the record with id, in a fresh slice
func without(jobs []domain.RepairJob, id int64) []domain.RepairJob {
	out := make([]domain.RepairJob, 0, len(jobs))
	for _, j := range jobs {
		if j.ID != id {
			out = append(out, j)
		}
	}
	return out
}
