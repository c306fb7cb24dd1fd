package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRegenerator struct {
	ownerID uuid.UUID
	date    time.Time
	calls   int
	err     error
}

func (r *recordingRegenerator) RegeneratePlan(_ context.Context, ownerID uuid.UUID, date time.Time) error {
	r.calls++
	r.ownerID = ownerID
	r.date = date
	return r.err
}

func TestNewPlanRegenerationFactory(t *testing.T) {
	_, err := NewPlanRegenerationFactory(nil, time.UTC, testLogger())
	assert.ErrorIs(t, err, ErrNilRegenerator)

	f, err := NewPlanRegenerationFactory(&recordingRegenerator{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, f.location)
	assert.Equal(t, TypePlanRegeneration, f.Type())
}

func TestPlanRegenerationFactory_CreateJob(t *testing.T) {
	f, err := NewPlanRegenerationFactory(&recordingRegenerator{}, time.UTC, testLogger())
	require.NoError(t, err)

	_, err = f.CreateJob(uuid.Nil)
	assert.ErrorIs(t, err, ErrEmptyOwnerID)

	ownerID := uuid.New()
	job, err := f.CreateJob(ownerID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, job.ID())
	assert.Equal(t, TypePlanRegeneration, job.Type())
	assert.Equal(t, StatusPending, job.Status())
	assert.Equal(t, ownerID, job.OwnerID())

	var payload PlanRegenerationPayload
	require.NoError(t, json.Unmarshal(job.Payload(), &payload))
	assert.Equal(t, ownerID, payload.OwnerID)
}

func TestPlanRegenerationFactory_FromRecord(t *testing.T) {
	f, err := NewPlanRegenerationFactory(&recordingRegenerator{}, time.UTC, testLogger())
	require.NoError(t, err)

	ownerID := uuid.New()
	rec := Record{
		ID:      uuid.New(),
		Type:    TypePlanRegeneration,
		Payload: []byte(`{"owner_id":"` + ownerID.String() + `"}`),
		Status:  StatusProcessing,
	}

	job, err := f.FromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, job.ID())
	assert.Equal(t, StatusProcessing, job.Status())
	assert.Equal(t, ownerID, job.(*PlanRegenerationJob).OwnerID())

	_, err = f.FromRecord(Record{ID: uuid.New(), Payload: []byte(`not json`)})
	assert.ErrorIs(t, err, ErrInvalidPayload)

	_, err = f.FromRecord(Record{ID: uuid.New(), Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrEmptyOwnerID)
}

func TestPlanRegenerationJob_ExecuteUsesTodayInLocation(t *testing.T) {
	regen := &recordingRegenerator{}
	tokyo := time.FixedZone("UTC+9", 9*60*60)
	f, err := NewPlanRegenerationFactory(regen, tokyo, testLogger())
	require.NoError(t, err)
	// 20:00 UTC on March 3rd is already March 4th at UTC+9.
	f.now = func() time.Time { return time.Date(2025, 3, 3, 20, 0, 0, 0, time.UTC) }

	ownerID := uuid.New()
	job, err := f.CreateJob(ownerID)
	require.NoError(t, err)

	require.NoError(t, job.Execute(context.Background()))
	assert.Equal(t, 1, regen.calls)
	assert.Equal(t, ownerID, regen.ownerID)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), regen.date)
}

func TestPlanRegenerationJob_ExecuteWrapsError(t *testing.T) {
	cause := errors.New("backend unavailable")
	f, err := NewPlanRegenerationFactory(&recordingRegenerator{err: cause}, time.UTC, testLogger())
	require.NoError(t, err)

	job, err := f.CreateJob(uuid.New())
	require.NoError(t, err)

	err = job.Execute(context.Background())
	assert.ErrorIs(t, err, cause)
}
