package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/vacancy/errors"
	testdb "github.com/teranos/vacancy/internal/testing"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *Store) {
	store := NewStore(testdb.CreateTestDB(t))
	return NewDispatcher(store, zaptest.NewLogger(t).Sugar()), store
}

func TestDispatcher_ScheduleIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t)
	runAt := time.Now().Add(30 * 24 * time.Hour)

	h1, err := d.Schedule(ctx, "listing.expire", "post-1", []byte(`{}`), runAt)
	require.NoError(t, err)
	h2, err := d.Schedule(ctx, "listing.expire", "post-1", []byte(`{}`), runAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	tasks, err := store.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.WithinDuration(t, runAt, tasks[0].RunAt, time.Microsecond, "first schedule wins")
}

func TestDispatcher_ScheduleRequiresIdentity(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Schedule(context.Background(), "", "k", nil, time.Now())
	assert.True(t, errors.IsValidationError(err))

	_, err = d.Schedule(context.Background(), "n", "", nil, time.Now())
	assert.True(t, errors.IsValidationError(err))
}

func TestDispatcher_Cancel(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t)

	handle, err := d.Schedule(ctx, "listing.expire", "post-1", nil, time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, d.Cancel(ctx, handle))
	require.NoError(t, d.Cancel(ctx, handle), "cancel is idempotent")

	task, err := store.Get(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, task.State)

	err = d.Cancel(ctx, "missing-handle")
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDispatcher_EnsureRecurring(t *testing.T) {
	ctx := context.Background()
	d, store := newTestDispatcher(t)
	first := time.Now().Add(time.Minute)

	h1, err := d.EnsureRecurring(ctx, "listing.reap-abandoned", "global", nil, time.Hour, first)
	require.NoError(t, err)
	h2, err := d.EnsureRecurring(ctx, "listing.reap-abandoned", "global", nil, time.Hour, first.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	task, err := store.Get(ctx, h1)
	require.NoError(t, err)
	assert.True(t, task.Recurring())
	assert.Equal(t, 3600, task.IntervalSeconds)

	_, err = d.EnsureRecurring(ctx, "x", "y", nil, time.Millisecond, first)
	assert.True(t, errors.IsValidationError(err))
}
