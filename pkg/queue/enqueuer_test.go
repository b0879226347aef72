package queue_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/queue"
)

func TestEnqueuer(t *testing.T) {
	t.Parallel()

	t.Run("nil repository", func(t *testing.T) {
		t.Parallel()
		_, err := queue.NewEnqueuer[sendEmail](nil)
		require.ErrorIs(t, err, queue.ErrRepositoryNil)
	})

	t.Run("names the task after the payload type", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStore()
		enq, err := queue.NewEnqueuer[sendEmail](store, queue.WithPriority(queue.PriorityHigh))
		require.NoError(t, err)

		id, err := enq.Enqueue(context.Background(), sendEmail{To: "a@b.c"}, queue.WithMaxRetries(4))
		require.NoError(t, err)

		task, err := store.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "queue_test", task.Module)
		assert.Equal(t, "sendEmail", task.Func)
		assert.Equal(t, queue.PriorityHigh, task.Priority)
		assert.Equal(t, 4, task.MaxRetryCount)
		require.NotNil(t, task.Params)
		assert.JSONEq(t, `{"to":"a@b.c","subject":""}`, *task.Params)

		// The worker-side handler for the same type resolves to the same name.
		h := queue.NewTaskHandler(func(context.Context, sendEmail) (string, error) { return "", nil })
		assert.Equal(t, task.Name(), h.Name())
	})

	t.Run("explicit task name", func(t *testing.T) {
		t.Parallel()
		store := queue.NewMemoryStore()
		enq, err := queue.NewEnqueuer[sendEmail](store)
		require.NoError(t, err)

		id, err := enq.Enqueue(context.Background(), sendEmail{}, queue.WithTaskName("mail", "send"))
		require.NoError(t, err)

		task, err := store.GetTask(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "mail.send", task.Name())
	})

	t.Run("nil pointer payload", func(t *testing.T) {
		t.Parallel()
		enq, err := queue.NewEnqueuer[*sendEmail](queue.NewMemoryStore())
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), nil)
		require.ErrorIs(t, err, queue.ErrPayloadNil)
	})

	t.Run("repository errors are wrapped", func(t *testing.T) {
		t.Parallel()
		enq, err := queue.NewEnqueuer[sendEmail](queue.NewMemoryStore())
		require.NoError(t, err)

		_, err = enq.Enqueue(context.Background(), sendEmail{}, queue.WithMaxRetries(-1))
		require.ErrorIs(t, err, queue.ErrInvalidRetries)
		assert.Contains(t, err.Error(), "queue_test.sendEmail")
	})
}
