package queue

import "errors"

var (
	// ErrUnknownJobType is returned when a job type outside the known set is
	// enqueued. It is synchronous and never retried.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrNoHandler is returned when no handler is registered for a job type.
	ErrNoHandler = errors.New("no handler registered for job type")

	// ErrInvalidPriority is returned for priorities outside 1..10.
	ErrInvalidPriority = errors.New("job priority must be between 1 and 10")

	// ErrQueueNotRunning is returned when enqueueing before Start or after Stop.
	ErrQueueNotRunning = errors.New("job queue is not running")

	// ErrQueueFull is returned when the pending backlog is at capacity.
	ErrQueueFull = errors.New("job queue is full")

	// ErrInvalidConfig is returned when queue configuration is invalid.
	ErrInvalidConfig = errors.New("invalid job queue configuration")
)
