package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/astra-labs/astra-core/internal/core/domain"
)

func setupTestQueue(t *testing.T) (*Queue, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	q, err := NewQueue(client, "test-worker")
	if err != nil {
		t.Fatalf("failed to create queue: %v", err)
	}

	return q, func() {
		client.Close()
		mr.Close()
	}
}

func TestQueue_Enqueue_And_GetTask(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected task to be stored")
	}
	if got.ID != task.ID {
		t.Errorf("expected task ID %s, got %s", task.ID, got.ID)
	}
	if got.Type != domain.TaskTypeIndexDocument {
		t.Errorf("expected type %s, got %s", domain.TaskTypeIndexDocument, got.Type)
	}
	if got.DocumentID() != "doc-1" {
		t.Errorf("expected payload doc_id doc-1, got %s", got.DocumentID())
	}
}

func TestQueue_Enqueue_NilTask(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	if err := q.Enqueue(context.Background(), nil); err == nil {
		t.Error("expected error for nil task")
	}
}

func TestQueue_Dequeue_ReturnsEnqueuedTask(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected to dequeue a task")
	}
	if got.ID != task.ID {
		t.Errorf("expected task ID %s, got %s", task.ID, got.ID)
	}
	if got.Status != domain.TaskStatusProcessing {
		t.Errorf("expected status processing, got %s", got.Status)
	}
}

func TestQueue_Dequeue_ScheduledTaskNotDue(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	task.ScheduledFor = time.Now().Add(1 * time.Hour)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.DequeueWithTimeout(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task before scheduled time, got %s", got.ID)
	}
}

func TestQueue_Ack_MarksCompleted(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Ack(ctx, task.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TaskStatusCompleted {
		t.Errorf("expected status completed, got %s", got.Status)
	}
}

func TestQueue_Nack_RetriesWithBackoff(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Nack(ctx, task.ID, "embedding service down"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TaskStatusPending {
		t.Errorf("expected status pending after retry, got %s", got.Status)
	}
	if got.Error != "embedding service down" {
		t.Errorf("expected error message recorded, got %q", got.Error)
	}
	if !got.ScheduledFor.After(time.Now()) {
		t.Error("expected retry to be scheduled in the future")
	}
}

func TestQueue_Nack_ExhaustedRetries(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()
	ctx := context.Background()

	task := domain.NewIndexDocumentTask("owner-1", "doc-1", false)
	task.Attempts = task.MaxAttempts
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := q.DequeueWithTimeout(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := q.Nack(ctx, task.ID, "persistent failure"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := q.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TaskStatusFailed {
		t.Errorf("expected status failed, got %s", got.Status)
	}
}

func TestQueue_Dequeue_EmptyQueue(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	got, err := q.DequeueWithTimeout(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected no task from empty queue, got %s", got.ID)
	}
}

func TestQueue_GetTask_Unknown(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	got, err := q.GetTask(context.Background(), "no-such-task")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for unknown task ID")
	}
}

func TestQueue_Ping(t *testing.T) {
	q, cleanup := setupTestQueue(t)
	defer cleanup()

	if err := q.Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
