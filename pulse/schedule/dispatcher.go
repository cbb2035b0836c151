package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vacancy/errors"
	"github.com/teranos/vacancy/logger"
)

// Dispatcher is the scheduling facade used by domain code.
// Handles are task IDs; they stay valid across restarts.
type Dispatcher struct {
	store  *Store
	logger *zap.SugaredLogger
}

// NewDispatcher creates a dispatcher over store
func NewDispatcher(store *Store, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{store: store, logger: log}
}

// Schedule registers a one-shot task to run at runAt and returns its handle.
// Scheduling the same (name, key) again returns the existing handle without
// creating a second task, whatever state the first one is in.
func (d *Dispatcher) Schedule(ctx context.Context, name, key string, payload []byte, runAt time.Time) (string, error) {
	return d.insert(ctx, &Task{
		Name:     name,
		DedupKey: key,
		Payload:  payload,
		RunAt:    runAt.UTC(),
	})
}

// EnsureRecurring registers a task that reruns every interval, first at firstRun.
// Idempotent on (name, key); an existing task keeps its schedule.
func (d *Dispatcher) EnsureRecurring(ctx context.Context, name, key string, payload []byte, interval time.Duration, firstRun time.Time) (string, error) {
	seconds := int(interval / time.Second)
	if seconds <= 0 {
		return "", errors.NewValidationError("recurring interval must be at least one second, got %s", interval)
	}
	return d.insert(ctx, &Task{
		Name:            name,
		DedupKey:        key,
		Payload:         payload,
		RunAt:           firstRun.UTC(),
		IntervalSeconds: seconds,
	})
}

func (d *Dispatcher) insert(ctx context.Context, task *Task) (string, error) {
	if task.Name == "" || task.DedupKey == "" {
		return "", errors.NewValidationError("task name and key are required")
	}

	created, err := d.store.Insert(ctx, task)
	if err != nil {
		return "", err
	}
	if created {
		d.logger.Debugw("Scheduled task",
			logger.FieldTaskID, task.ID,
			logger.FieldTaskName, task.Name,
			logger.FieldRunAt, task.RunAt)
		return task.ID, nil
	}

	existing, err := d.store.GetByKey(ctx, task.Name, task.DedupKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to load existing task after conflict")
	}
	d.logger.Debugw("Task already scheduled",
		logger.FieldTaskID, existing.ID,
		logger.FieldTaskName, existing.Name,
		logger.FieldStatus, existing.State)
	return existing.ID, nil
}

// Cancel stops a task from firing. Cancelling a completed or already
// cancelled task is a no-op; an unknown handle is an error.
func (d *Dispatcher) Cancel(ctx context.Context, handle string) error {
	changed, err := d.store.Cancel(ctx, handle)
	if err != nil {
		return err
	}
	if changed {
		d.logger.Debugw("Cancelled task", logger.FieldTaskID, handle)
		return nil
	}
	// Distinguish "already terminal" from "never existed"
	if _, err := d.store.Get(ctx, handle); err != nil {
		return err
	}
	return nil
}
