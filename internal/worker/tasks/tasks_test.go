package tasks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/worker/tasks"
)

var _ billing.Scheduler = (*tasks.TaskHandlers)(nil)

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(task, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func (m *mockEnqueuer) lastTask() *asynq.Task {
	return m.Calls[len(m.Calls)-1].Arguments.Get(0).(*asynq.Task)
}

func optionValue(opts []asynq.Option, typ asynq.OptionType) interface{} {
	for _, opt := range opts {
		if opt.Type() == typ {
			return opt.Value()
		}
	}
	return nil
}

func TestDelayedTasks(t *testing.T) {
	ctx := context.Background()

	t.Run("Schedule enqueues on the instance queue with the delay", func(t *testing.T) {
		client := &mockEnqueuer{}
		h := tasks.NewTaskHandlers(client, nil)
		client.On("Enqueue", mock.Anything, mock.Anything).Return(&asynq.TaskInfo{Queue: h.Queue()}, nil)

		require.NoError(t, h.Schedule(func() {}, billing.DefaultRetryDelay))

		client.AssertNumberOfCalls(t, "Enqueue", 1)
		opts := client.Calls[0].Arguments.Get(1).([]asynq.Option)
		assert.Equal(t, tasks.TypeRunDelayed, client.lastTask().Type())
		assert.Equal(t, h.Queue(), optionValue(opts, asynq.QueueOpt))
		assert.Equal(t, billing.DefaultRetryDelay, optionValue(opts, asynq.ProcessInOpt))
		assert.Equal(t, 0, optionValue(opts, asynq.MaxRetryOpt))
		assert.Equal(t, 1, h.Pending())
	})

	t.Run("Handler runs the scheduled closure once", func(t *testing.T) {
		client := &mockEnqueuer{}
		h := tasks.NewTaskHandlers(client, nil)
		client.On("Enqueue", mock.Anything, mock.Anything).Return(&asynq.TaskInfo{Queue: h.Queue()}, nil)
		runs := 0

		require.NoError(t, h.Schedule(func() { runs++ }, time.Second))
		task := client.lastTask()

		require.NoError(t, h.HandleRunDelayed(ctx, task))
		err := h.HandleRunDelayed(ctx, task)

		assert.Equal(t, 1, runs)
		assert.ErrorIs(t, err, asynq.SkipRetry)
		assert.Equal(t, 0, h.Pending())
	})

	t.Run("Drain runs tasks the server never handled", func(t *testing.T) {
		client := &mockEnqueuer{}
		h := tasks.NewTaskHandlers(client, nil)
		client.On("Enqueue", mock.Anything, mock.Anything).Return(&asynq.TaskInfo{Queue: h.Queue()}, nil)
		runs := 0

		require.NoError(t, h.Schedule(func() { runs++ }, time.Hour))
		require.NoError(t, h.Schedule(func() { runs++ }, time.Hour))
		task := client.lastTask()

		assert.Equal(t, 2, h.Drain())
		assert.Equal(t, 2, runs)
		assert.Equal(t, 0, h.Pending())
		assert.ErrorIs(t, h.HandleRunDelayed(ctx, task), asynq.SkipRetry)
		assert.Equal(t, 0, h.Drain())
	})

	t.Run("Enqueue failure is returned and nothing stays pending", func(t *testing.T) {
		client := &mockEnqueuer{}
		h := tasks.NewTaskHandlers(client, nil)
		client.On("Enqueue", mock.Anything, mock.Anything).Return(nil, errors.New("redis: connection refused"))

		err := h.Schedule(func() {}, time.Second)

		assert.ErrorContains(t, err, "connection refused")
		assert.Equal(t, 0, h.Pending())
	})

	t.Run("Malformed payload is not retried", func(t *testing.T) {
		h := tasks.NewTaskHandlers(&mockEnqueuer{}, nil)

		err := h.HandleRunDelayed(ctx, asynq.NewTask(tasks.TypeRunDelayed, []byte("{")))

		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("Instances consume separate queues", func(t *testing.T) {
		a := tasks.NewTaskHandlers(&mockEnqueuer{}, nil)
		b := tasks.NewTaskHandlers(&mockEnqueuer{}, nil)

		assert.NotEqual(t, a.Queue(), b.Queue())
	})
}
