package job

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryJobStore implements JobStore in memory for tests
type memoryJobStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
	SaveFn  func(ctx context.Context, job Job) error
}

func newMemoryJobStore() *memoryJobStore {
	return &memoryJobStore{records: make(map[uuid.UUID]Record)}
}

func (s *memoryJobStore) SaveJob(ctx context.Context, job Job) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, job)
	}
	s.put(Record{
		ID:      job.ID(),
		Type:    job.Type(),
		Payload: job.Payload(),
		Status:  job.Status(),
	}, time.Now())
	return nil
}

func (s *memoryJobStore) put(rec Record, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = at
	}
	rec.UpdatedAt = at
	s.records[rec.ID] = rec
}

func (s *memoryJobStore) UpdateJobStatus(_ context.Context, id uuid.UUID, status JobStatus, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	rec.Status = status
	rec.ErrorMessage = msg
	rec.UpdatedAt = time.Now()
	s.records[id] = rec
	return nil
}

func (s *memoryJobStore) GetPendingJobs(context.Context) ([]Record, error) {
	return s.byStatus(StatusPending, 0), nil
}

func (s *memoryJobStore) GetProcessingJobs(_ context.Context, olderThan time.Duration) ([]Record, error) {
	return s.byStatus(StatusProcessing, olderThan), nil
}

func (s *memoryJobStore) byStatus(status JobStatus, olderThan time.Duration) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status != status {
			continue
		}
		if olderThan > 0 && time.Since(rec.UpdatedAt) <= olderThan {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *memoryJobStore) WithTx(*sql.Tx) JobStore { return s }

func (s *memoryJobStore) get(id uuid.UUID) Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// testJob is a Job whose behaviour is supplied by the test
type testJob struct {
	id        uuid.UUID
	status    JobStatus
	ExecuteFn func(ctx context.Context) error
}

func newTestJob() *testJob {
	return &testJob{id: uuid.New(), status: StatusPending}
}

func (j *testJob) ID() uuid.UUID     { return j.id }
func (j *testJob) Type() string      { return "test" }
func (j *testJob) Payload() []byte   { return []byte(`{}`) }
func (j *testJob) Status() JobStatus { return j.status }

func (j *testJob) Execute(ctx context.Context) error {
	if j.ExecuteFn != nil {
		return j.ExecuteFn(ctx)
	}
	return nil
}

// testFactory rebuilds testJobs, giving each the execute function registered for its ID
type testFactory struct {
	mu       sync.Mutex
	executes map[uuid.UUID]func(ctx context.Context) error
}

func (f *testFactory) Type() string { return "test" }

func (f *testFactory) FromRecord(rec Record) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &testJob{id: rec.ID, status: rec.Status, ExecuteFn: f.executes[rec.ID]}, nil
}
