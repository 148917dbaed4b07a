package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID()
	id2 := GenerateID()

	if id1 == "" || id2 == "" {
		t.Fatal("expected non-empty IDs")
	}
	if id1 == id2 {
		t.Error("expected unique IDs")
	}
	if _, err := uuid.Parse(id1); err != nil {
		t.Errorf("expected a UUID, got %q: %v", id1, err)
	}
}

func TestNewTask(t *testing.T) {
	payload := map[string]string{"key": "value"}

	task := NewTask(TaskTypePublishCatalog, "default", payload)

	if task.ID == "" {
		t.Error("expected non-empty ID")
	}
	if task.Type != TaskTypePublishCatalog {
		t.Errorf("expected type %s, got %s", TaskTypePublishCatalog, task.Type)
	}
	if task.Deployment != "default" {
		t.Errorf("expected deployment default, got %s", task.Deployment)
	}
	if task.Payload["key"] != "value" {
		t.Error("expected payload to be set")
	}
	if task.Status != TaskStatusPending {
		t.Errorf("expected status %s, got %s", TaskStatusPending, task.Status)
	}
	if task.MaxAttempts != 3 {
		t.Errorf("expected max attempts 3, got %d", task.MaxAttempts)
	}
	if task.CreatedAt.IsZero() || task.ScheduledFor.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestNewPublishCatalogTask(t *testing.T) {
	task := NewPublishCatalogTask("default", PublishOptions{SkipSmoke: true, SmokeQuery: "crm"})

	if task.Type != TaskTypePublishCatalog {
		t.Errorf("expected type %s, got %s", TaskTypePublishCatalog, task.Type)
	}
	opts := task.PublishOptions()
	if !opts.SkipSmoke {
		t.Error("expected skip smoke to round-trip through the payload")
	}
	if opts.SmokeQuery != "crm" {
		t.Errorf("expected smoke query crm, got %q", opts.SmokeQuery)
	}
}

func TestTask_PublishOptions_NilPayload(t *testing.T) {
	task := &Task{}
	if opts := task.PublishOptions(); opts.SkipSmoke || opts.SmokeQuery != "" {
		t.Errorf("expected zero options, got %+v", opts)
	}
}

func TestTask_CanRetry(t *testing.T) {
	tests := []struct {
		attempts    int
		maxAttempts int
		expected    bool
	}{
		{0, 3, true},
		{2, 3, true},
		{3, 3, false},
		{5, 3, false},
	}

	for _, tt := range tests {
		task := &Task{Attempts: tt.attempts, MaxAttempts: tt.maxAttempts}
		if got := task.CanRetry(); got != tt.expected {
			t.Errorf("attempts=%d max=%d: expected %v, got %v", tt.attempts, tt.maxAttempts, tt.expected, got)
		}
	}
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewTask(TaskTypePublishCatalog, "default", nil)

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

	task.MarkFailed("upload failed")
	if task.Status != TaskStatusFailed || task.Error != "upload failed" {
		t.Errorf("expected failed with error, got %s %q", task.Status, task.Error)
	}
}

func TestTask_Retry(t *testing.T) {
	task := NewTask(TaskTypePublishCatalog, "default", nil)
	task.MarkProcessing()

	before := time.Now()
	task.Retry("temporary")

	if task.Status != TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.ScheduledFor.Before(before.Add(time.Second)) {
		t.Errorf("expected backoff of at least 1s, scheduled for %v", task.ScheduledFor)
	}
	if task.IsReady() {
		t.Error("expected task not ready until backoff elapses")
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{8, 256 * time.Second},
		{9, 5 * time.Minute},
		{40, 5 * time.Minute},
	}

	for _, tt := range tests {
		if got := RetryBackoff(tt.attempts); got != tt.expected {
			t.Errorf("RetryBackoff(%d) = %v, want %v", tt.attempts, got, tt.expected)
		}
	}
}
