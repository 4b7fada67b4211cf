package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/repair-tracker/internal/domain"
	"github.com/cuongbtq/repair-tracker/internal/uploads"
	workerdomain "github.com/cuongbtq/repair-tracker/internal/worker/domain"
	"github.com/cuongbtq/repair-tracker/shared/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReferences struct {
	referenced map[string]bool
	err        error
}

func (f *fakeReferences) ImageReferenced(_ context.Context, url string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.referenced[url], nil
}

type fakeFiles struct {
	mu      sync.Mutex
	removed []string
	errFor  map[string]error
}

func (f *fakeFiles) Remove(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errFor[url]; err != nil {
		return err
	}
	f.removed = append(f.removed, url)
	return nil
}

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (a *fakeAcknowledger) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcknowledger) byTag() map[uint64]ackRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[uint64]ackRecord, len(a.records))
	for _, r := range a.records {
		out[r.tag] = r
	}
	return out
}

type chanSource struct {
	ch  chan amqp.Delivery
	err error
}

func (s *chanSource) Consume(string) (<-chan amqp.Delivery, error) {
	return s.ch, s.err
}

type republished struct {
	body    []byte
	headers amqp.Table
}

type fakeRepublisher struct {
	mu   sync.Mutex
	msgs []republished
	err  error
}

func (r *fakeRepublisher) Republish(_ context.Context, body []byte, _ string, headers amqp.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, republished{body: body, headers: headers})
	return nil
}

func (r *fakeRepublisher) take() (republished, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return republished{}, false
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, true
}

var permissionDenied = &fs.PathError{Op: "remove", Path: "uploads/a.png", Err: fs.ErrPermission}

func newTestWorker(refs ReferenceChecker, files FileRemover, source DeliverySource) *Worker {
	return NewWorker(&Config{
		Logger:      logger.NewDiscard().Logger,
		Source:      source,
		References:  refs,
		Files:       files,
		Concurrency: 2,
		TaskTimeout: time.Second,
		RetryDelay:  time.Millisecond,
	})
}

func newRetryingWorker(files FileRemover, retrier Republisher) *Worker {
	return NewWorker(&Config{
		Logger:      logger.NewDiscard().Logger,
		References:  &fakeReferences{},
		Files:       files,
		Retrier:     retrier,
		TaskTimeout: time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
	})
}

func TestWorker_ProcessTask(t *testing.T) {
	foreign := fmt.Errorf("%w: %q", uploads.ErrForeignURL, "https://cdn.example.com/x.png")

	tests := []struct {
		name           string
		refs           *fakeReferences
		files          *fakeFiles
		images         []string
		wantRemoved    []string
		wantReferenced []string
		wantSkipped    []string
		wantRetryable  bool
		wantPermanent  bool
	}{
		{
			name:        "removes unreferenced images",
			refs:        &fakeReferences{},
			files:       &fakeFiles{},
			images:      []string{"/uploads/a.png", "/uploads/b.png"},
			wantRemoved: []string{"/uploads/a.png", "/uploads/b.png"},
		},
		{
			name:           "keeps images another job still uses",
			refs:           &fakeReferences{referenced: map[string]bool{"/uploads/a.png": true}},
			files:          &fakeFiles{},
			images:         []string{"/uploads/a.png", "/uploads/b.png"},
			wantRemoved:    []string{"/uploads/b.png"},
			wantReferenced: []string{"/uploads/a.png"},
		},
		{
			name:        "duplicates handled once",
			refs:        &fakeReferences{},
			files:       &fakeFiles{},
			images:      []string{"/uploads/a.png", "/uploads/a.png"},
			wantRemoved: []string{"/uploads/a.png"},
		},
		{
			name:        "foreign urls skipped",
			refs:        &fakeReferences{},
			files:       &fakeFiles{errFor: map[string]error{"https://cdn.example.com/x.png": foreign}},
			images:      []string{"https://cdn.example.com/x.png"},
			wantSkipped: []string{"https://cdn.example.com/x.png"},
		},
		{
			name:          "database failure is retryable",
			refs:          &fakeReferences{err: errors.New("connection reset")},
			files:         &fakeFiles{},
			images:        []string{"/uploads/a.png"},
			wantRetryable: true,
		},
		{
			name:          "disk failure is retryable",
			refs:          &fakeReferences{},
			files:         &fakeFiles{errFor: map[string]error{"/uploads/a.png": errors.New("input/output error")}},
			images:        []string{"/uploads/a.png"},
			wantRetryable: true,
		},
		{
			name:          "permission denied is not retried",
			refs:          &fakeReferences{},
			files:         &fakeFiles{errFor: map[string]error{"/uploads/a.png": permissionDenied}},
			images:        []string{"/uploads/a.png"},
			wantPermanent: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorker(tt.refs, tt.files, nil)

			result, err := w.processTask(context.Background(), workerdomain.CleanupTask{
				JobID:  1,
				Images: tt.images,
			})

			if tt.wantRetryable {
				require.Error(t, err)
				assert.True(t, shouldRequeue(err))
				return
			}
			if tt.wantPermanent {
				require.ErrorIs(t, err, fs.ErrPermission)
				assert.False(t, shouldRequeue(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantRemoved, result.Removed)
			assert.Equal(t, tt.wantReferenced, result.Referenced)
			assert.Equal(t, tt.wantSkipped, result.Skipped)
			assert.Equal(t, tt.wantRemoved, tt.files.removed)
		})
	}
}

func TestDecodeTask(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name: "valid event",
			body: `{"event":"images_released","job_id":4,"user_id":2,"images":["/uploads/a.png"]}`,
		},
		{
			name:    "malformed json",
			body:    `{`,
			wantErr: workerdomain.ErrInvalidPayload,
		},
		{
			name:    "other event",
			body:    `{"event":"job_created","job_id":4}`,
			wantErr: workerdomain.ErrUnknownEvent,
		},
		{
			name:    "missing job id",
			body:    `{"event":"images_released","images":["/uploads/a.png"]}`,
			wantErr: workerdomain.ErrInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := decodeTask([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, shouldRequeue(err))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, workerdomain.CleanupTask{
				JobID:  4,
				UserID: 2,
				Images: []string{"/uploads/a.png"},
			}, task)
		})
	}
}

func TestShouldRequeue(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "retryable", err: workerdomain.NewRetryableError(errors.New("timeout")), want: true},
		{name: "wrapped retryable", err: fmt.Errorf("ctx: %w", workerdomain.NewRetryableError(errors.New("x"))), want: true},
		{name: "invalid payload", err: workerdomain.ErrInvalidPayload, want: false},
		{name: "unknown error", err: errors.New("boom"), want: false},
		{
			name: "retries exhausted",
			err:  fmt.Errorf("%w: %w", workerdomain.ErrMaxRetriesExceeded, workerdomain.NewRetryableError(errors.New("x"))),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeue(tt.err))
		})
	}
}

func delivery(t *testing.T, acker amqp.Acknowledger, tag uint64, body any) amqp.Delivery {
	t.Helper()

	var raw []byte
	switch v := body.(type) {
	case string:
		raw = []byte(v)
	default:
		var err error
		raw, err = json.Marshal(v)
		require.NoError(t, err)
	}

	return amqp.Delivery{Acknowledger: acker, DeliveryTag: tag, Body: raw}
}

func TestWorker_Start_AcksAndNacks(t *testing.T) {
	acker := &fakeAcknowledger{}
	source := &chanSource{ch: make(chan amqp.Delivery, 4)}
	files := &fakeFiles{errFor: map[string]error{"/uploads/broken.png": errors.New("disk error")}}
	w := newTestWorker(&fakeReferences{}, files, source)

	source.ch <- delivery(t, acker, 1, domain.ImagesReleasedEvent{
		Event: domain.EventImagesReleased, JobID: 1, Images: []string{"/uploads/a.png"},
	})
	source.ch <- delivery(t, acker, 2, "not json")
	source.ch <- delivery(t, acker, 3, domain.ImagesReleasedEvent{
		Event: domain.EventImagesReleased, JobID: 2, Images: []string{"/uploads/broken.png"},
	})
	close(source.ch)

	err := w.Start(context.Background())
	require.ErrorIs(t, err, ErrDeliveriesClosed)

	records := acker.byTag()
	require.Len(t, records, 3)
	assert.True(t, records[1].ack)
	assert.False(t, records[2].ack)
	assert.False(t, records[2].requeue)
	assert.False(t, records[3].ack)
	assert.True(t, records[3].requeue)
	assert.Equal(t, []string{"/uploads/a.png"}, files.removed)

	w.Stop()
}

func TestWorker_Start_StopsOnCancel(t *testing.T) {
	source := &chanSource{ch: make(chan amqp.Delivery)}
	w := newTestWorker(&fakeReferences{}, &fakeFiles{}, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_Start_ConsumeError(t *testing.T) {
	w := newTestWorker(&fakeReferences{}, &fakeFiles{}, &chanSource{err: errors.New("not connected")})

	err := w.Start(context.Background())
	assert.ErrorContains(t, err, "failed to start consuming")
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "no headers", headers: nil, want: 0},
		{name: "int32", headers: amqp.Table{retryHeader: int32(2)}, want: 2},
		{name: "int64", headers: amqp.Table{retryHeader: int64(3)}, want: 3},
		{name: "wrong type", headers: amqp.Table{retryHeader: "2"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryCount(tt.headers))
		})
	}
}

func TestWorker_RetriesStopAtLimit(t *testing.T) {
	acker := &fakeAcknowledger{}
	retrier := &fakeRepublisher{}
	files := &fakeFiles{errFor: map[string]error{"/uploads/a.png": errors.New("input/output error")}}
	w := newRetryingWorker(files, retrier)

	task := workerdomain.CleanupTask{JobID: 1, Images: []string{"/uploads/a.png"}}
	d := delivery(t, acker, 1, domain.ImagesReleasedEvent{
		Event: domain.EventImagesReleased, JobID: 1, Images: task.Images,
	})

	// play the broker: every republished message comes back as a new delivery
	attempts := 0
	var seenRetries []int
	for {
		attempts++
		require.LessOrEqual(t, attempts, 10, "task retried without limit")

		w.handle(context.Background(), "test-0", &taskMessage{task: task, delivery: d})

		next, ok := retrier.take()
		if !ok {
			break
		}
		seenRetries = append(seenRetries, retryCount(next.headers))
		d = amqp.Delivery{
			Acknowledger: acker,
			DeliveryTag:  uint64(attempts + 1),
			Body:         next.body,
			Headers:      next.headers,
		}
	}

	assert.Equal(t, 4, attempts)
	assert.Equal(t, []int{1, 2, 3}, seenRetries)

	records := acker.byTag()
	require.Len(t, records, 4)
	for tag := uint64(1); tag <= 3; tag++ {
		assert.True(t, records[tag].ack, "republished delivery %d is acked", tag)
	}
	assert.False(t, records[4].ack)
	assert.False(t, records[4].requeue)
}

func TestWorker_FailureSettlement(t *testing.T) {
	tests := []struct {
		name          string
		fileErr       error
		retrier       *fakeRepublisher
		redelivered   bool
		wantAck       bool
		wantRequeue   bool
		wantRepublish bool
	}{
		{
			name:          "transient failure is republished",
			fileErr:       errors.New("input/output error"),
			retrier:       &fakeRepublisher{},
			wantAck:       true,
			wantRepublish: true,
		},
		{
			name:    "permission denied is dropped",
			fileErr: permissionDenied,
			retrier: &fakeRepublisher{},
		},
		{
			name:        "republish failure falls back to requeue",
			fileErr:     errors.New("input/output error"),
			retrier:     &fakeRepublisher{err: errors.New("channel closed")},
			wantRequeue: true,
		},
		{
			name:        "first failure without republisher is requeued",
			fileErr:     errors.New("input/output error"),
			wantRequeue: true,
		},
		{
			name:        "redelivered failure without republisher is dropped",
			fileErr:     errors.New("input/output error"),
			redelivered: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &fakeAcknowledger{}
			files := &fakeFiles{errFor: map[string]error{"/uploads/a.png": tt.fileErr}}

			// a nil *fakeRepublisher must stay a nil interface
			var retrier Republisher
			if tt.retrier != nil {
				retrier = tt.retrier
			}
			w := newRetryingWorker(files, retrier)

			task := workerdomain.CleanupTask{JobID: 1, Images: []string{"/uploads/a.png"}}
			d := delivery(t, acker, 7, domain.ImagesReleasedEvent{
				Event: domain.EventImagesReleased, JobID: 1, Images: task.Images,
			})
			d.Redelivered = tt.redelivered

			w.handle(context.Background(), "test-0", &taskMessage{task: task, delivery: d})

			rec := acker.byTag()[7]
			assert.Equal(t, tt.wantAck, rec.ack)
			assert.Equal(t, tt.wantRequeue, rec.requeue)

			if tt.retrier != nil {
				_, republishedMsg := tt.retrier.take()
				assert.Equal(t, tt.wantRepublish, republishedMsg)
			}
		})
	}
}
