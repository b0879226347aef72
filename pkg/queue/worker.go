package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Worker claims tasks from a WorkerRepository and runs their handlers.
type Worker struct {
	repo     WorkerRepository
	handlers map[string]Handler
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex
	stopMu   sync.Mutex // Protects stopping state and WaitGroup operations

	pollInterval time.Duration
	taskTimeout  time.Duration
	wakeup       <-chan struct{}
	logger       *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopping atomic.Bool
}

// NewWorker creates a new task worker
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &workerOptions{
		pollInterval:       5 * time.Second,
		taskTimeout:        5 * time.Minute,
		maxConcurrentTasks: 1,
		logger:             slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:         repo,
		handlers:     make(map[string]Handler),
		workerID:     uuid.New(),
		sem:          make(chan struct{}, options.maxConcurrentTasks),
		pollInterval: options.pollInterval,
		taskTimeout:  options.taskTimeout,
		wakeup:       options.wakeup,
		logger:       options.logger.With(logger.Component("worker")),
	}, nil
}

// RegisterHandler registers a single task handler. A later handler with the
// same name replaces the earlier one.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.handlers[handler.Name()] = handler
	return nil
}

// RegisterHandlers registers multiple task handlers
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing tasks in the background
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return ErrWorkerStarted
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.mu.Unlock()

	w.stopping.Store(false)

	go w.run()

	w.logger.Info("worker started",
		logger.WorkerID(w.workerID.String()),
		slog.Int("max_concurrent", cap(w.sem)),
		slog.Duration("poll_interval", w.pollInterval))

	return nil
}

// Stop cancels polling and waits for running tasks to finish. Handlers
// keep their own timeout and are not cancelled by Stop.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}

	w.stopMu.Lock()
	w.stopping.Store(true)
	w.stopMu.Unlock()

	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("worker stopping, waiting for active tasks to complete",
		logger.WorkerID(w.workerID.String()))

	w.wg.Wait()

	w.logger.Info("worker stopped",
		logger.WorkerID(w.workerID.String()))

	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

func (w *Worker) run() {
	defer close(w.done)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
		case _, ok := <-w.wakeup:
			if !ok {
				// Subscription ended; keep polling on the ticker only.
				w.wakeup = nil
				continue
			}
		}
		w.dispatch()
	}
}

// dispatch starts a drain loop when a slot is free.
func (w *Worker) dispatch() {
	select {
	case w.sem <- struct{}{}:
	default:
		w.logger.Debug("all worker slots busy, skipping tick",
			logger.WorkerID(w.workerID.String()))
		return
	}

	// Use stopMu to ensure we don't add to WaitGroup after Stop() starts
	w.stopMu.Lock()
	if w.stopping.Load() {
		w.stopMu.Unlock()
		<-w.sem
		return
	}
	w.wg.Add(1)
	w.stopMu.Unlock()

	go func() {
		defer w.wg.Done()
		defer func() { <-w.sem }()

		for w.ctx.Err() == nil {
			found, err := w.pullAndProcess()
			if err != nil && !errors.Is(err, ErrHandlerNotFound) {
				w.logger.Error("failed to process task",
					logger.WorkerID(w.workerID.String()),
					logger.Error(err))
			}
			if !found || err != nil {
				return
			}
		}
	}()
}

// pullAndProcess claims one task and runs it. found is false when the queue
// had nothing eligible.
func (w *Worker) pullAndProcess() (found bool, err error) {
	task, err := w.repo.AcquireNext(w.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, err
	}
	if task == nil {
		return false, nil
	}

	w.logger.Debug("claimed task",
		logger.WorkerID(w.workerID.String()),
		logger.TaskID(task.ID),
		logger.TaskName(task.Name()),
		logger.RetryCount(task.RetryCount))

	return true, w.processTask(task)
}

// processTask executes a task with its handler. Bookkeeping runs on a
// context detached from the worker so a shutdown never strands a task in
// the working state.
func (w *Worker) processTask(task *Task) (retErr error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), w.taskTimeout)
	defer cancel()
	ctx = WithTaskInfo(ctx, TaskInfo{
		ID:         task.ID,
		Name:       task.Name(),
		RetryCount: task.RetryCount,
		WorkerID:   w.workerID.String(),
	})

	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.Error("handler panicked",
				logger.WorkerID(w.workerID.String()),
				logger.TaskID(task.ID),
				logger.TaskName(task.Name()),
				slog.Any("panic", r))
			_ = w.handleTaskFailure(task, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[task.Name()]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(task)
	}

	var params json.RawMessage
	if task.Params != nil {
		params = json.RawMessage(*task.Params)
	}

	result, err := handler.Handle(ctx, params)
	duration := time.Since(start)

	if err != nil {
		return w.handleTaskFailure(task, err, duration)
	}
	return w.handleTaskSuccess(task, result, duration)
}

// handleMissingHandler records the task as failed. It goes back through the
// retry tier while budget remains, so a worker that has the handler can
// still pick it up.
func (w *Worker) handleMissingHandler(task *Task) error {
	w.logger.Error("no handler registered for task",
		logger.WorkerID(w.workerID.String()),
		logger.TaskID(task.ID),
		logger.TaskName(task.Name()))

	if err := w.recordFailure(task, "no handler registered for task: "+task.Name()); err != nil {
		return err
	}
	return ErrHandlerNotFound
}

func (w *Worker) handleTaskFailure(task *Task, execErr error, duration time.Duration) error {
	w.logger.Error("task failed",
		logger.WorkerID(w.workerID.String()),
		logger.TaskID(task.ID),
		logger.TaskName(task.Name()),
		logger.RetryCount(task.RetryCount),
		slog.Int("max_retries", task.MaxRetryCount),
		logger.Duration(duration),
		logger.Error(execErr))

	if err := w.recordFailure(task, execErr.Error()); err != nil {
		return err
	}

	if task.MaxRetryCount == 0 || task.RetryCount+1 >= task.MaxRetryCount {
		w.logger.Warn("task retries exhausted",
			logger.WorkerID(w.workerID.String()),
			logger.TaskID(task.ID),
			logger.TaskName(task.Name()))
	}
	return nil
}

func (w *Worker) recordFailure(task *Task, errText string) error {
	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	if err := w.repo.RecordFailure(ctx, task.ID, errText); err != nil {
		return fmt.Errorf("failed to record failure of task %d: %w", task.ID, err)
	}
	return nil
}

func (w *Worker) handleTaskSuccess(task *Task, result string, duration time.Duration) error {
	ctx, cancel := w.bookkeepingContext()
	defer cancel()

	if err := w.repo.Complete(ctx, task.ID, result); err != nil {
		return fmt.Errorf("failed to mark task %d as completed: %w", task.ID, err)
	}

	w.logger.Info("task completed successfully",
		logger.WorkerID(w.workerID.String()),
		logger.TaskID(task.ID),
		logger.TaskName(task.Name()),
		logger.Duration(duration))

	return nil
}

func (w *Worker) bookkeepingContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(w.ctx), 30*time.Second)
}

// ID returns the worker instance id used in logs.
func (w *Worker) ID() string {
	return w.workerID.String()
}
