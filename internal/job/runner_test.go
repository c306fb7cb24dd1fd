package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestRunner_Submit(t *testing.T) {
	t.Parallel()

	t.Run("persists job as pending", func(t *testing.T) {
		t.Parallel()
		store := newMemoryJobStore()
		runner := NewRunner(store, DefaultRunnerConfig(), testLogger())
		defer runner.Stop()

		job := newTestJob()
		require.NoError(t, runner.Submit(context.Background(), job))

		assert.Equal(t, StatusPending, store.get(job.ID()).Status)
	})

	t.Run("full queue does not block or fail", func(t *testing.T) {
		t.Parallel()
		store := newMemoryJobStore()
		config := DefaultRunnerConfig()
		config.QueueSize = 1
		runner := NewRunner(store, config, testLogger())
		defer runner.Stop()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 5; i++ {
				assert.NoError(t, runner.Submit(context.Background(), newTestJob()))
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Submit blocked on a full queue")
		}
	})

	t.Run("store error", func(t *testing.T) {
		t.Parallel()
		store := newMemoryJobStore()
		store.SaveFn = func(context.Context, Job) error { return errors.New("mock store error") }
		runner := NewRunner(store, DefaultRunnerConfig(), testLogger())
		defer runner.Stop()

		err := runner.Submit(context.Background(), newTestJob())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save job")
	})

	t.Run("stopped runner", func(t *testing.T) {
		t.Parallel()
		runner := NewRunner(newMemoryJobStore(), DefaultRunnerConfig(), testLogger())
		runner.Stop()

		err := runner.Submit(context.Background(), newTestJob())
		assert.ErrorIs(t, err, ErrRunnerStopped)
	})
}

func TestRunner_ProcessesOverflowedJobs(t *testing.T) {
	t.Parallel()

	store := newMemoryJobStore()
	config := DefaultRunnerConfig()
	config.QueueSize = 1
	config.WorkerCount = 1
	runner := NewRunner(store, config, testLogger())
	require.NoError(t, runner.Start())
	defer runner.Stop()

	release := make(chan struct{})
	completed := make(chan uuid.UUID, 10)
	ids := make([]uuid.UUID, 0, 4)
	for i := 0; i < 4; i++ {
		job := newTestJob()
		job.ExecuteFn = func(context.Context) error {
			<-release
			completed <- job.ID()
			return nil
		}
		ids = append(ids, job.ID())
		require.NoError(t, runner.Submit(context.Background(), job))
	}
	close(release)

	seen := map[uuid.UUID]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < len(ids) {
		select {
		case id := <-completed:
			seen[id] = true
		case <-timeout:
			t.Fatalf("only %d of %d jobs completed", len(seen), len(ids))
		}
	}
}

func TestRunner_StatusTransitions(t *testing.T) {
	t.Parallel()

	store := newMemoryJobStore()
	runner := NewRunner(store, DefaultRunnerConfig(), testLogger())

	failed := make(chan struct{}, 1)
	runner.SetErrorHandler(func(Job, error) { failed <- struct{}{} })

	okJob := newTestJob()
	okDone := make(chan struct{})
	okJob.ExecuteFn = func(context.Context) error {
		defer close(okDone)
		assert.Equal(t, StatusProcessing, store.get(okJob.ID()).Status)
		return nil
	}
	badJob := newTestJob()
	badJob.ExecuteFn = func(context.Context) error { return errors.New("intentional test failure") }

	require.NoError(t, runner.Start())
	require.NoError(t, runner.Submit(context.Background(), okJob))
	require.NoError(t, runner.Submit(context.Background(), badJob))

	select {
	case <-failed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error handler")
	}
	select {
	case <-okDone:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job")
	}

	assert.Eventually(t, func() bool {
		return store.get(okJob.ID()).Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)

	runner.Stop()

	rec := store.get(badJob.ID())
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, "intentional test failure", rec.ErrorMessage)
}

func TestRunner_ShutdownLeavesJobProcessing(t *testing.T) {
	t.Parallel()

	store := newMemoryJobStore()
	runner := NewRunner(store, DefaultRunnerConfig(), testLogger())

	started := make(chan struct{})
	job := newTestJob()
	job.ExecuteFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	require.NoError(t, runner.Start())
	require.NoError(t, runner.Submit(context.Background(), job))

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never started")
	}
	runner.Stop()

	assert.Equal(t, StatusProcessing, store.get(job.ID()).Status)
}

func TestRunner_Recover(t *testing.T) {
	t.Parallel()

	store := newMemoryJobStore()
	now := time.Now()
	pending := Record{ID: uuid.New(), Type: "test", Payload: []byte(`{}`), Status: StatusPending}
	processing := Record{ID: uuid.New(), Type: "test", Payload: []byte(`{}`), Status: StatusProcessing}
	unknown := Record{ID: uuid.New(), Type: "mystery", Payload: []byte(`{}`), Status: StatusPending}
	store.put(pending, now)
	store.put(processing, now)
	store.put(unknown, now)

	completed := make(chan uuid.UUID, 5)
	signal := func(id uuid.UUID) func(context.Context) error {
		return func(context.Context) error {
			completed <- id
			return nil
		}
	}
	factory := &testFactory{executes: map[uuid.UUID]func(context.Context) error{
		pending.ID:    signal(pending.ID),
		processing.ID: signal(processing.ID),
	}}

	runner := NewRunner(store, DefaultRunnerConfig(), testLogger())
	runner.RegisterFactory(factory)
	require.NoError(t, runner.Start())
	defer runner.Stop()

	seen := map[uuid.UUID]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-completed:
			seen[id] = true
		case <-timeout:
			t.Fatal("timed out waiting for recovered jobs")
		}
	}

	assert.True(t, seen[pending.ID])
	assert.True(t, seen[processing.ID])

	rec := store.get(unknown.ID)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, ErrUnknownJobType.Error())
}

func TestRunner_RequeueStuckJobs(t *testing.T) {
	t.Parallel()

	store := newMemoryJobStore()
	stuck := Record{ID: uuid.New(), Type: "test", Payload: []byte(`{}`), Status: StatusProcessing}
	fresh := Record{ID: uuid.New(), Type: "test", Payload: []byte(`{}`), Status: StatusProcessing}
	store.put(stuck, time.Now().Add(-time.Hour))
	store.put(fresh, time.Now())

	config := DefaultRunnerConfig()
	config.StuckJobAge = 15 * time.Minute
	runner := NewRunner(store, config, testLogger())
	runner.RegisterFactory(&testFactory{})
	defer runner.Stop()

	runner.requeueStuckJobs(context.Background())

	select {
	case job := <-runner.queue:
		assert.Equal(t, stuck.ID, job.ID())
	default:
		t.Fatal("stuck job was not requeued")
	}
	assert.Empty(t, runner.queue)
	assert.Equal(t, StatusPending, store.get(stuck.ID).Status)
	assert.Equal(t, StatusProcessing, store.get(fresh.ID).Status)
}
