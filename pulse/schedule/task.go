// Package schedule provides durable one-shot and recurring task scheduling with pulse control.
package schedule

import "time"

// Task is a unit of deferred work persisted in scheduled_tasks.
// (Name, DedupKey) is unique, so scheduling the same logical task twice is a no-op.
type Task struct {
	ID              string
	Name            string // Handler to invoke (e.g., "listing.expire")
	DedupKey        string // Caller-chosen identity within Name (e.g., the job post id)
	Payload         []byte // Handler-specific JSON
	RunAt           time.Time
	IntervalSeconds int // 0 = one-shot
	State           string
	Attempts        int
	LeaseUntil      *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// State constants for scheduled tasks
const (
	StatePending   = "pending"   // Waiting for RunAt
	StateRunning   = "running"   // Claimed by a ticker; reclaimable once LeaseUntil passes
	StateCompleted = "completed" // One-shot task finished
	StateCancelled = "cancelled" // Cancelled before it could complete
)

// Recurring reports whether the task reschedules itself after each run.
func (t *Task) Recurring() bool {
	return t.IntervalSeconds > 0
}
