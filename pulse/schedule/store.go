package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/vacancy/db"
	"github.com/teranos/vacancy/errors"
)

// Store handles persistence of scheduled tasks and their runs
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store
func NewStore(database *sql.DB) *Store {
	return &Store{db: database}
}

const taskColumns = `
	id, task_name, dedup_key, payload, run_at, interval_seconds,
	state, attempts, lease_until, last_error, created_at, updated_at`

// Insert persists task unless a task with the same (Name, DedupKey) exists.
// Returns true when a new row was written.
func (s *Store) Insert(ctx context.Context, task *Task) (bool, error) {
	now := time.Now()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.State == "" {
		task.State = StatePending
	}

	var payload interface{}
	if len(task.Payload) > 0 {
		payload = string(task.Payload)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
		ON CONFLICT (task_name, dedup_key) DO NOTHING`,
		task.ID,
		task.Name,
		task.DedupKey,
		payload,
		db.FormatTime(task.RunAt),
		task.IntervalSeconds,
		task.State,
		db.FormatTime(now),
		db.FormatTime(now),
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert scheduled task")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n == 1, nil
}

// Get retrieves a task by ID
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("scheduled task %s", id)
	}
	return task, err
}

// GetByKey retrieves a task by its logical identity
func (s *Store) GetByKey(ctx context.Context, name, key string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE task_name = ? AND dedup_key = ?`, name, key)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("scheduled task %s/%s", name, key)
	}
	return task, err
}

// ListDue returns tasks that are ready to run: pending and due, or running with an expired lease.
// Results are ordered by run_at ASC (oldest due first) and capped at limit.
func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*Task, error) {
	ts := db.FormatTime(now)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM scheduled_tasks
		WHERE (state = ? AND run_at <= ?)
		   OR (state = ? AND lease_until <= ?)
		ORDER BY run_at ASC
		LIMIT ?`,
		StatePending, ts, StateRunning, ts, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list due tasks")
	}
	return scanTasks(rows)
}

// List returns tasks in the given state, soonest first. Empty state lists all.
func (s *Store) List(ctx context.Context, state string, limit int) ([]*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM scheduled_tasks`
	args := []interface{}{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY run_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return scanTasks(rows)
}

// CountByState returns task counts keyed by state
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM scheduled_tasks GROUP BY state`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count tasks")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// NextPending returns the pending task that will run soonest, or nil
func (s *Store) NextPending(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM scheduled_tasks
		WHERE state = ? ORDER BY run_at ASC LIMIT 1`, StatePending)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// Claim marks a due task as running under a lease.
// The conditional update makes concurrent tickers race safely: exactly one wins.
func (s *Store) Claim(ctx context.Context, id string, now, leaseUntil time.Time) (bool, error) {
	ts := db.FormatTime(now)
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET state = ?, attempts = attempts + 1, lease_until = ?, updated_at = ?
		WHERE id = ?
		  AND ((state = ? AND run_at <= ?) OR (state = ? AND lease_until <= ?))`,
		StateRunning, db.FormatTime(leaseUntil), ts,
		id,
		StatePending, ts, StateRunning, ts)
	if err != nil {
		return false, errors.Wrapf(err, "failed to claim task %s", id)
	}
	return rowsChanged(res)
}

// Complete finishes a running one-shot task. A task cancelled mid-run stays cancelled.
func (s *Store) Complete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET state = ?, lease_until = NULL, last_error = NULL, updated_at = ?
		WHERE id = ? AND state = ?`,
		StateCompleted, db.FormatTime(time.Now()), id, StateRunning)
	if err != nil {
		return errors.Wrapf(err, "failed to complete task %s", id)
	}
	return nil
}

// Reschedule returns a running task to pending with a new run time.
// Used both for retry after failure and for the next occurrence of a recurring task.
func (s *Store) Reschedule(ctx context.Context, id string, runAt time.Time, lastError string) error {
	var errVal interface{}
	if lastError != "" {
		errVal = lastError
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET state = ?, run_at = ?, lease_until = NULL, last_error = ?, updated_at = ?
		WHERE id = ? AND state = ?`,
		StatePending, db.FormatTime(runAt), errVal, db.FormatTime(time.Now()), id, StateRunning)
	if err != nil {
		return errors.Wrapf(err, "failed to reschedule task %s", id)
	}
	return nil
}

// Cancel moves a pending or running task to cancelled.
// Returns false when the task was already completed or cancelled.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_tasks
		SET state = ?, lease_until = NULL, updated_at = ?
		WHERE id = ? AND state IN (?, ?)`,
		StateCancelled, db.FormatTime(time.Now()), id, StatePending, StateRunning)
	if err != nil {
		return false, errors.Wrapf(err, "failed to cancel task %s", id)
	}
	return rowsChanged(res)
}

// StartRun records the beginning of an attempt
func (s *Store) StartRun(ctx context.Context, taskID string, startedAt time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Status:    RunStatusRunning,
		StartedAt: startedAt,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_runs (id, task_id, status, started_at)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.TaskID, run.Status, db.FormatTime(startedAt))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create task run")
	}
	return run, nil
}

// FinishRun records the outcome of an attempt
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	var errVal interface{}
	if run.ErrorMessage != "" {
		errVal = run.ErrorMessage
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE task_runs
		SET status = ?, completed_at = ?, duration_ms = ?, error_message = ?
		WHERE id = ?`,
		run.Status, db.NullTime(run.CompletedAt), run.DurationMs, errVal, run.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to update task run %s", run.ID)
	}
	return nil
}

// ListRuns returns the attempts recorded for a task, oldest first
func (s *Store) ListRuns(ctx context.Context, taskID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, status, started_at, completed_at, duration_ms, error_message
		FROM task_runs WHERE task_id = ? ORDER BY started_at ASC`, taskID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list task runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var startedAt string
		var completedAt, errMsg sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&run.ID, &run.TaskID, &run.Status, &startedAt, &completedAt, &duration, &errMsg); err != nil {
			return nil, err
		}
		if run.StartedAt, err = db.ParseTime(startedAt); err != nil {
			return nil, errors.Wrapf(err, "failed to parse started_at for run %s", run.ID)
		}
		if completedAt.Valid {
			t, err := db.ParseTime(completedAt.String)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to parse completed_at for run %s", run.ID)
			}
			run.CompletedAt = &t
		}
		if duration.Valid {
			d := int(duration.Int64)
			run.DurationMs = &d
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var runAt, createdAt, updatedAt string
	var payload, leaseUntil, lastError sql.NullString

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.DedupKey,
		&payload,
		&runAt,
		&task.IntervalSeconds,
		&task.State,
		&task.Attempts,
		&leaseUntil,
		&lastError,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	// Parse failures indicate data corruption or schema mismatch
	if task.RunAt, err = db.ParseTime(runAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse run_at for task %s", task.ID)
	}
	if task.CreatedAt, err = db.ParseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for task %s", task.ID)
	}
	if task.UpdatedAt, err = db.ParseTime(updatedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for task %s", task.ID)
	}
	if leaseUntil.Valid {
		t, err := db.ParseTime(leaseUntil.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse lease_until for task %s", task.ID)
		}
		task.LeaseUntil = &t
	}
	if payload.Valid {
		task.Payload = []byte(payload.String)
	}
	task.LastError = lastError.String

	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*Task, error) {
	defer rows.Close()
	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to read rows affected")
	}
	return n > 0, nil
}
