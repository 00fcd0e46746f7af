package driven

import (
	"context"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

// TaskQueue distributes indexing tasks to background workers. The
// Redis Streams implementation is preferred; a Postgres table with
// row locking serves as fallback when Redis is not deployed.
type TaskQueue interface {
	// Enqueue makes the task available to workers. Tasks with a
	// future ScheduledFor become visible only once due.
	Enqueue(ctx context.Context, task *domain.Task) error

	// Dequeue blocks until a task is available or the context ends.
	// A dequeued task is marked processing and hidden from other
	// workers.
	Dequeue(ctx context.Context) (*domain.Task, error)

	// DequeueWithTimeout waits up to timeout seconds for a task.
	// Returns nil, nil when nothing becomes available in time.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	// Ack marks the task completed and removes it from the queue.
	Ack(ctx context.Context, taskID string) error

	// Nack records a processing failure. The task is rescheduled
	// with backoff while attempts remain, then marked failed.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns the task record for status checks.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// Ping reports whether the queue backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the queue.
	Close() error
}
