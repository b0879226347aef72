package queue_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/taskq/pkg/queue"
)

// MockWorkerRepository is a mock implementation of WorkerRepository
type MockWorkerRepository struct {
	mock.Mock
}

func (m *MockWorkerRepository) AcquireNext(ctx context.Context) (*queue.Task, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockWorkerRepository) Complete(ctx context.Context, taskID int64, result string) error {
	args := m.Called(ctx, taskID, result)
	return args.Error(0)
}

func (m *MockWorkerRepository) RecordFailure(ctx context.Context, taskID int64, errText string) error {
	args := m.Called(ctx, taskID, errText)
	return args.Error(0)
}

type chargeParams struct {
	Amount int `json:"amount"`
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func claimedTask(id int64, module, function, params string) *queue.Task {
	return &queue.Task{
		ID:     id,
		Module: module,
		Func:   function,
		Params: &params,
		Status: queue.StatusWorking,
	}
}

func newTestWorker(t *testing.T, repo queue.WorkerRepository, opts ...queue.WorkerOption) *queue.Worker {
	t.Helper()
	opts = append([]queue.WorkerOption{
		queue.WithPollInterval(10 * time.Millisecond),
		queue.WithWorkerLogger(quietLogger()),
	}, opts...)
	w, err := queue.NewWorker(repo, opts...)
	require.NoError(t, err)
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil)
	require.ErrorIs(t, err, queue.ErrRepositoryNil)

	w, err := queue.NewWorker(&MockWorkerRepository{})
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID())
}

func TestWorker_Lifecycle(t *testing.T) {
	t.Parallel()

	t.Run("requires handlers", func(t *testing.T) {
		t.Parallel()
		w := newTestWorker(t, &MockWorkerRepository{})
		require.ErrorIs(t, w.Start(context.Background()), queue.ErrNoHandlers)
	})

	t.Run("stop before start", func(t *testing.T) {
		t.Parallel()
		w := newTestWorker(t, &MockWorkerRepository{})
		require.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)
	})

	t.Run("double start", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()

		w := newTestWorker(t, repo)
		require.NoError(t, w.RegisterHandler(queue.NewFuncHandler("m", "f", func(context.Context) error { return nil })))

		require.NoError(t, w.Start(context.Background()))
		require.ErrorIs(t, w.Start(context.Background()), queue.ErrWorkerStarted)
		require.NoError(t, w.Stop())
		require.ErrorIs(t, w.Stop(), queue.ErrWorkerNotStarted)
	})
}

func TestWorker_ProcessTask(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, repo *MockWorkerRepository, handlers ...queue.Handler) {
		t.Helper()
		w := newTestWorker(t, repo)
		require.NoError(t, w.RegisterHandlers(handlers...))

		done := make(chan struct{})
		var once atomic.Bool
		for i, c := range repo.ExpectedCalls {
			if c.Method == "Complete" || c.Method == "RecordFailure" {
				repo.ExpectedCalls[i].Run(func(mock.Arguments) {
					if once.CompareAndSwap(false, true) {
						close(done)
					}
				})
			}
		}

		require.NoError(t, w.Start(context.Background()))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task was not finished")
		}
		require.NoError(t, w.Stop())
		repo.AssertExpectations(t)
	}

	t.Run("success stores the result", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(claimedTask(1, "queue_test", "chargeParams", `{"amount":7}`), nil).Once()
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()
		repo.On("Complete", mock.Anything, int64(1), `{"charged":7}`).Return(nil).Once()

		run(t, repo, queue.NewTaskHandler(func(_ context.Context, p chargeParams) (map[string]int, error) {
			return map[string]int{"charged": p.Amount}, nil
		}))
	})

	t.Run("handler error is recorded", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(claimedTask(2, "billing", "charge", `{}`), nil).Once()
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()
		repo.On("RecordFailure", mock.Anything, int64(2), "card declined").Return(nil).Once()

		run(t, repo, queue.NewNamedHandler("billing", "charge", func(context.Context, chargeParams) (string, error) {
			return "", errors.New("card declined")
		}))
	})

	t.Run("missing handler is recorded", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(claimedTask(3, "mail", "send", `{}`), nil).Once()
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()
		repo.On("RecordFailure", mock.Anything, int64(3), "no handler registered for task: mail.send").Return(nil).Once()

		run(t, repo, queue.NewFuncHandler("billing", "charge", func(context.Context) error { return nil }))
	})

	t.Run("panic is recorded", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(claimedTask(4, "billing", "charge", `{}`), nil).Once()
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()
		repo.On("RecordFailure", mock.Anything, int64(4), mock.MatchedBy(func(s string) bool {
			return strings.HasPrefix(s, "panic in handler: ")
		})).Return(nil).Once()

		run(t, repo, queue.NewFuncHandler("billing", "charge", func(context.Context) error {
			panic("nil map")
		}))
	})

	t.Run("bad params fail the task", func(t *testing.T) {
		t.Parallel()
		repo := &MockWorkerRepository{}
		repo.On("AcquireNext", mock.Anything).Return(claimedTask(5, "billing", "charge", `not json`), nil).Once()
		repo.On("AcquireNext", mock.Anything).Return(nil, nil).Maybe()
		repo.On("RecordFailure", mock.Anything, int64(5), mock.MatchedBy(func(s string) bool {
			return strings.HasPrefix(s, "decode params: ")
		})).Return(nil).Once()

		run(t, repo, queue.NewNamedHandler("billing", "charge", func(context.Context, chargeParams) (string, error) {
			return "", nil
		}))
	})
}

func TestWorker_HandlerContextSurvivesStop(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStore()
	ctx := context.Background()
	id, err := store.Enqueue(ctx, "slow", "job", nil)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var handlerErr atomic.Value

	w := newTestWorker(t, store)
	require.NoError(t, w.RegisterHandler(queue.NewFuncHandler("slow", "job", func(ctx context.Context) error {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			handlerErr.Store(err)
		}
		return nil
	})))
	require.NoError(t, w.Start(ctx))

	<-started
	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	time.Sleep(20 * time.Millisecond)
	close(release)
	require.NoError(t, <-stopped)

	assert.Nil(t, handlerErr.Load(), "handler context must not be cancelled by Stop")
	task, err := store.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusDone, task.Status)
}

func TestWorker_Wakeup(t *testing.T) {
	t.Parallel()

	n := queue.NewChanNotifier()
	store := queue.NewMemoryStore(queue.WithNotifier(n))

	processed := make(chan int64, 1)
	w := newTestWorker(t, store,
		queue.WithPollInterval(time.Hour),
		queue.WithWakeup(n.C()))
	require.NoError(t, w.RegisterHandler(queue.NewFuncHandler("m", "f", func(context.Context) error {
		processed <- 1
		return nil
	})))
	require.NoError(t, w.Start(context.Background()))
	defer func() { require.NoError(t, w.Stop()) }()

	_, err := store.Enqueue(context.Background(), "m", "f", nil)
	require.NoError(t, err)

	select {
	case <-processed:
	case <-time.After(2 * time.Second):
		t.Fatal("wake-up signal did not trigger a poll")
	}
}

func TestWorker_EndToEnd(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enq, err := queue.NewEnqueuer[chargeParams](store, queue.WithMaxRetries(2))
	require.NoError(t, err)

	const total = 20
	for i := range total {
		_, err := enq.Enqueue(ctx, chargeParams{Amount: i})
		require.NoError(t, err)
	}

	var seen sync.Map
	w := newTestWorker(t, store, queue.WithMaxConcurrentTasks(4))
	require.NoError(t, w.RegisterHandler(queue.NewTaskHandler(func(_ context.Context, p chargeParams) (int, error) {
		// Odd amounts fail on their first attempt and succeed on retry.
		if _, retried := seen.LoadOrStore(p.Amount, true); !retried && p.Amount%2 == 1 {
			return 0, errors.New("transient")
		}
		return p.Amount * 10, nil
	})))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(w.Run(gctx))

	require.Eventually(t, func() bool {
		stats, err := store.Stats(ctx)
		return err == nil && stats.Done == total
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())

	tasks, err := store.ListTasks(context.Background(), nil, 0)
	require.NoError(t, err)
	for _, task := range tasks {
		assert.Equal(t, queue.StatusDone, task.Status)
		assert.Equal(t, "queue_test", task.Module)
		assert.Equal(t, "chargeParams", task.Func)
	}
}

func TestWorker_HandlerSeesTaskInfo(t *testing.T) {
	t.Parallel()

	store := queue.NewMemoryStore()
	ctx := context.Background()
	id, err := store.Enqueue(ctx, "mail", "send", nil)
	require.NoError(t, err)

	got := make(chan queue.TaskInfo, 1)
	w := newTestWorker(t, store)
	require.NoError(t, w.RegisterHandler(queue.NewFuncHandler("mail", "send", func(ctx context.Context) error {
		info, ok := queue.TaskInfoFromContext(ctx)
		if ok {
			got <- info
		}
		return nil
	})))
	require.NoError(t, w.Start(ctx))
	defer func() { require.NoError(t, w.Stop()) }()

	select {
	case info := <-got:
		assert.Equal(t, id, info.ID)
		assert.Equal(t, "mail.send", info.Name)
		assert.Equal(t, w.ID(), info.WorkerID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not run")
	}
}
