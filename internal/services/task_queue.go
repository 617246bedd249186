package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypePhotoUploaded = "notification:photo_uploaded"
)

// PhotoUploadedTask asks for one notification per admin/manager about a
// newly stored photo.
type PhotoUploadedTask struct {
	PhotoID    string `json:"photo_id"`
	SiteID     string `json:"site_id"`
	UploadedBy string `json:"uploaded_by"`
}

// TaskProcessor handles a dequeued task.
type TaskProcessor func(context.Context, *PhotoUploadedTask) error

// TaskQueue defines the interface for background notification work
type TaskQueue interface {
	Enqueue(ctx context.Context, task *PhotoUploadedTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the Redis-backed queue when configured and reachable,
// otherwise the in-process one. processor is used by the in-process queue;
// the async path runs it from the Worker.
func InitTaskQueue(cfg *config.Config, processor TaskProcessor) TaskQueue {
	taskQueueOnce.Do(func() {
		if cfg.Redis.Enabled {
			queue, err := NewAsyncQueue(&cfg.Redis)
			if err == nil {
				logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
				globalTaskQueue = queue
				return
			}
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		} else {
			logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		}
		q := NewSyncQueue()
		q.SetProcessor(processor)
		globalTaskQueue = q
	})
	return globalTaskQueue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, task *PhotoUploadedTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	// the task id makes a re-enqueue for the same photo a no-op
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypePhotoUploaded, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
		asynq.TaskID(TaskTypePhotoUploaded+":"+task.PhotoID),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Msg("task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs the processor inline, before Enqueue returns.
type SyncQueue struct {
	processor TaskProcessor
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(ctx context.Context, task *PhotoUploadedTask) error {
	if q.processor == nil {
		logger.Warnf("[SyncQueue] no processor set, task %s dropped", TaskTypePhotoUploaded)
		return nil
	}
	return q.processor(ctx, task)
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
