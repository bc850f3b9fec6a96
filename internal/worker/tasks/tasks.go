package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Task names
const (
	TypeRunDelayed = "billing:run_delayed"
)

// Enqueuer is the part of *asynq.Client the handlers need
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type runDelayedPayload struct {
	TaskID string `json:"task_id"`
}

// TaskHandlers runs delayed billing work through asynq. The work itself is
// a closure held in process memory, so every handler instance consumes its
// own queue and only sees the tasks it enqueued.
type TaskHandlers struct {
	client Enqueuer
	queue  string
	logger *zap.Logger

	mu      sync.Mutex
	pending map[string]func()
}

// NewTaskHandlers creates task handlers that enqueue through client
func NewTaskHandlers(client Enqueuer, logger *zap.Logger) *TaskHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandlers{
		client:  client,
		queue:   "billing-delay-" + uuid.NewString(),
		logger:  logger.With(zap.String("component", "asynq-scheduler")),
		pending: make(map[string]func()),
	}
}

// Queue returns the queue this instance enqueues to and consumes
func (h *TaskHandlers) Queue() string {
	return h.queue
}

// Schedule enqueues task to run once after delay. It implements the
// billing Scheduler port.
func (h *TaskHandlers) Schedule(task func(), delay time.Duration) error {
	id := uuid.NewString()
	payload, err := json.Marshal(runDelayedPayload{TaskID: id})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.pending[id] = task
	h.mu.Unlock()

	info, err := h.client.Enqueue(asynq.NewTask(TypeRunDelayed, payload),
		asynq.Queue(h.queue),
		asynq.TaskID(id),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(0),
	)
	if err != nil {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
		return fmt.Errorf("failed to enqueue delayed task: %w", err)
	}

	h.logger.Debug("Delayed task enqueued",
		zap.String("task_id", id),
		zap.String("queue", info.Queue),
		zap.Duration("delay", delay),
	)
	return nil
}

// Pending returns the number of enqueued tasks that have not run yet
func (h *TaskHandlers) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// HandleRunDelayed runs the closure registered under the task id
func (h *TaskHandlers) HandleRunDelayed(ctx context.Context, t *asynq.Task) error {
	var payload runDelayedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid delayed task payload: %v: %w", err, asynq.SkipRetry)
	}

	h.mu.Lock()
	task, ok := h.pending[payload.TaskID]
	delete(h.pending, payload.TaskID)
	h.mu.Unlock()

	if !ok {
		h.logger.Warn("Delayed task is not owned by this process", zap.String("task_id", payload.TaskID))
		return fmt.Errorf("unknown delayed task %s: %w", payload.TaskID, asynq.SkipRetry)
	}

	task()
	h.logger.Debug("Delayed task completed", zap.String("task_id", payload.TaskID))
	return nil
}

// Drain runs every task that has not run yet and forgets it. Call it after
// the asynq server has shut down, so the closures still resolve.
func (h *TaskHandlers) Drain() int {
	h.mu.Lock()
	drained := h.pending
	h.pending = make(map[string]func())
	h.mu.Unlock()

	for id, task := range drained {
		h.logger.Debug("Running delayed task on shutdown", zap.String("task_id", id))
		task()
	}
	return len(drained)
}

// RegisterHandlers registers all task handlers with the server mux.
func RegisterHandlers(mux *asynq.ServeMux, h *TaskHandlers) {
	mux.HandleFunc(TypeRunDelayed, h.HandleRunDelayed)
}

// NewServer creates an asynq server consuming only h's queue
func NewServer(redisClient redis.UniversalClient, h *TaskHandlers, logger *zap.Logger) *asynq.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return asynq.NewServerFromRedisClient(redisClient, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			h.queue: 1,
		},
		Logger:   logger.Sugar(),
		LogLevel: asynq.WarnLevel,
	})
}
