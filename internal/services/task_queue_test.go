package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskhub/internal/config"
)

func TestTaskTypeNotification_Constant(t *testing.T) {
	if TaskTypeNotification != "notification:deliver" {
		t.Errorf("TaskTypeNotification = %q, expected %q", TaskTypeNotification, "notification:deliver")
	}
}

func TestNotificationJob_JSONOmitsEmptyEntity(t *testing.T) {
	data, err := json.Marshal(&NotificationJob{UserID: 3, Type: "general", Title: "hi"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]interface{}
	json.Unmarshal(data, &fields)
	for _, key := range []string{"project_id", "entity_type", "entity_id"} {
		if _, ok := fields[key]; ok {
			t.Errorf("%s should be omitted when empty", key)
		}
	}
}

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutProcessor(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Enqueue(&NotificationJob{UserID: 1}); err != nil {
		t.Errorf("Enqueue without processor should not error, got %v", err)
	}
}

func TestSyncQueue_ProcessesInBackground(t *testing.T) {
	queue := NewSyncQueue()
	done := make(chan *NotificationJob, 1)
	queue.SetProcessor(func(ctx context.Context, job *NotificationJob) error {
		done <- job
		return nil
	})

	if err := queue.Enqueue(&NotificationJob{UserID: 9, Title: "x"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case job := <-done:
		if job.UserID != 9 {
			t.Errorf("UserID = %d, expected 9", job.UserID)
		}
	case <-time.After(time.Second):
		t.Fatal("processor was not called")
	}
}

func TestNewTaskQueue_FallsBackToSync(t *testing.T) {
	queue := NewTaskQueue(&config.RedisConfig{Enabled: false}, func(context.Context, *NotificationJob) error { return nil })
	defer queue.Close()
	if queue.IsAsync() {
		t.Error("queue should be in-process when Redis is disabled")
	}
	if NewWorker(&config.RedisConfig{Enabled: false}) != nil {
		t.Error("no worker should be created without Redis")
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}

func TestWorker_HandleNotification(t *testing.T) {
	w := &Worker{}
	var got *NotificationJob
	w.SetProcessor(func(ctx context.Context, job *NotificationJob) error {
		got = job
		return nil
	})

	payload, _ := json.Marshal(&NotificationJob{UserID: 4, Type: "task_due_soon", Title: "due"})
	if err := w.handleNotification(context.Background(), asynq.NewTask(TaskTypeNotification, payload)); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
	if got == nil || got.UserID != 4 || got.Type != "task_due_soon" {
		t.Errorf("unexpected job %+v", got)
	}

	if err := w.handleNotification(context.Background(), asynq.NewTask(TaskTypeNotification, []byte("{"))); err == nil {
		t.Error("malformed payload should fail")
	}
}
