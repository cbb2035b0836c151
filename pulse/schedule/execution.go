package schedule

import "time"

// Run records one attempt at executing a task.
// Each claim produces a Run, so at-least-once redelivery is visible in history.
type Run struct {
	ID           string
	TaskID       string
	Status       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	DurationMs   *int
	ErrorMessage string
}

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)
