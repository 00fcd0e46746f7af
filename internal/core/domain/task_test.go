package domain

import (
	"testing"
	"time"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" {
		t.Error("expected non-empty ID")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	// Base64 URL encoding of 16 bytes = 22 chars
	if len(id1) != 22 {
		t.Errorf("expected ID length 22, got %d", len(id1))
	}
}

func TestNewIndexDocumentTask(t *testing.T) {
	task := NewIndexDocumentTask("owner-1", "doc-123", true)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypeIndexDocument {
		t.Errorf("expected type %s, got %s", TaskTypeIndexDocument, task.Type)
	}
	if task.OwnerID != "owner-1" {
		t.Errorf("expected owner owner-1, got %s", task.OwnerID)
	}
	if task.DocumentID() != "doc-123" {
		t.Errorf("expected doc-123, got %s", task.DocumentID())
	}
	if !task.SkipExisting() {
		t.Error("expected skip_existing true")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status pending, got %s", task.Status)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
}

func TestTaskPayloadAccessorsNilPayload(t *testing.T) {
	task := NewReindexAllTask("owner-1")

	if task.DocumentID() != "" {
		t.Errorf("expected empty doc id, got %s", task.DocumentID())
	}
	if task.SkipExisting() {
		t.Error("expected skip_existing false")
	}
}

func TestTaskLifecycle(t *testing.T) {
	task := NewIndexDocumentTask("owner-1", "doc-123", false)

	task.MarkProcessing()
	if task.Status != TaskStatusProcessing {
		t.Errorf("expected processing, got %s", task.Status)
	}
	if task.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", task.Attempts)
	}
	if task.StartedAt == nil {
		t.Error("expected StartedAt to be set")
	}

	task.MarkCompleted()
	if task.Status != TaskStatusCompleted {
		t.Errorf("expected completed, got %s", task.Status)
	}
	if task.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
}

func TestTaskRetryBackoff(t *testing.T) {
	task := NewIndexDocumentTask("owner-1", "doc-123", false)
	task.MarkProcessing()

	before := time.Now()
	task.Retry("embedding service timeout")

	if task.Status != TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.Error != "embedding service timeout" {
		t.Errorf("unexpected error message: %s", task.Error)
	}
	if !task.ScheduledFor.After(before) {
		t.Error("expected retry to be scheduled in the future")
	}
	if !task.CanRetry() {
		t.Error("expected task to still be retryable")
	}
}
