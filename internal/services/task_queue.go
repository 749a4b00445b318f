package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/pkg/logger"
)

const (
	TaskTypeNotification = "notification:deliver"
)

// NotificationJob asks the worker to store and push one notification.
type NotificationJob struct {
	UserID     uint   `json:"user_id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	ProjectID  *uint  `json:"project_id,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   *uint  `json:"entity_id,omitempty"`
}

// Notifier accepts notification jobs for delivery.
type Notifier interface {
	Enqueue(job *NotificationJob) error
}

// TaskQueue defines the interface for background job processing
type TaskQueue interface {
	Notifier
	// IsAsync returns true if queue processes jobs out of process
	IsAsync() bool
	Close() error
}

// NewTaskQueue returns a Redis-backed queue when Redis is enabled and
// reachable, and an in-process queue otherwise.
func NewTaskQueue(cfg *config.RedisConfig, processor func(context.Context, *NotificationJob) error) TaskQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Addr)
			return queue
		}
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
	} else {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	}

	queue := NewSyncQueue()
	queue.SetProcessor(processor)
	return queue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := redisClientOpt(cfg)
	client := asynq.NewClient(redisOpt)

	// Verify the connection before committing to async mode
	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func redisClientOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (q *AsyncQueue) Enqueue(job *NotificationJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeNotification, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Uint("user_id", job.UserID).Msg("notification job enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue processes jobs in-process without Redis.
type SyncQueue struct {
	processor func(context.Context, *NotificationJob) error
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor func(context.Context, *NotificationJob) error) {
	q.processor = processor
}

// Enqueue processes the job in a new goroutine so the caller's request is
// not held up.
func (q *SyncQueue) Enqueue(job *NotificationJob) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, job dropped")
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), job); err != nil {
			logger.Warnf("[SyncQueue] job processing failed: %v", err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
