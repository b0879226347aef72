package queue

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// PeriodicEnqueuer turns Schedule definitions into scheduled-tier tasks.
// A run is enqueued only when FindPending reports no unclaimed task for the
// same module.func. The lookup and the insert are separate statements, so the
// guarantee holds for one enqueuer per store; two enqueuers polling the same
// table can both insert a run for one slot. Run a single enqueuer per
// deployment (taskq serve starts exactly one).
type PeriodicEnqueuer struct {
	repo     PeriodicRepository
	tasks    map[string]*periodicTask
	mu       sync.RWMutex
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type periodicTask struct {
	module          string
	function        string
	schedule        Schedule
	priority        Priority
	maxRetries      int
	params          any
	lastScheduledAt *time.Time
}

func (t *periodicTask) name() string {
	return TaskName(t.module, t.function)
}

// NewPeriodicEnqueuer creates a periodic enqueuer over repo.
func NewPeriodicEnqueuer(repo PeriodicRepository, opts ...PeriodicOption) (*PeriodicEnqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &periodicOptions{
		checkInterval: 30 * time.Second,
		now:           time.Now,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	return &PeriodicEnqueuer{
		repo:     repo,
		tasks:    make(map[string]*periodicTask),
		interval: options.checkInterval,
		now:      options.now,
		logger:   options.logger.With(logger.Component("periodic")),
	}, nil
}

// AddTask registers a periodic task for module.function.
func (p *PeriodicEnqueuer) AddTask(module, function string, schedule Schedule, opts ...PeriodicTaskOption) error {
	if module == "" || function == "" {
		return ErrModuleRequired
	}
	if schedule == nil {
		return ErrInvalidSchedule
	}

	taskOpts := &periodicTaskOptions{
		priority:   PriorityDefault,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(taskOpts)
	}

	task := &periodicTask{
		module:     module,
		function:   function,
		schedule:   schedule,
		priority:   taskOpts.priority,
		maxRetries: taskOpts.maxRetries,
		params:     taskOpts.params,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.tasks[task.name()]; exists {
		return ErrTaskAlreadyRegistered
	}
	p.tasks[task.name()] = task

	p.logger.Info("registered periodic task",
		logger.TaskName(task.name()),
		slog.String("schedule", schedule.String()))

	return nil
}

// RemoveTask unregisters a periodic task. Already enqueued runs stay.
func (p *PeriodicEnqueuer) RemoveTask(module, function string) {
	name := TaskName(module, function)

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.tasks, name)

	p.logger.Info("removed periodic task", logger.TaskName(name))
}

// Tasks returns the registered task names in sorted order.
func (p *PeriodicEnqueuer) Tasks() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return slices.Sorted(maps.Keys(p.tasks))
}

// Start checks the registered tasks immediately and then on every interval
// until ctx is cancelled.
func (p *PeriodicEnqueuer) Start(ctx context.Context) error {
	p.mu.RLock()
	taskCount := len(p.tasks)
	p.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.CheckTasks(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("periodic enqueuer shutting down")
			return ctx.Err()
		case <-ticker.C:
			p.CheckTasks(ctx)
		}
	}
}

// Run returns a function suitable for errgroup. Cancellation is a clean exit.
func (p *PeriodicEnqueuer) Run(ctx context.Context) func() error {
	return func() error {
		if err := p.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}
}

// CheckTasks enqueues every registered task that is due. Failures are logged
// and retried on the next check.
func (p *PeriodicEnqueuer) CheckTasks(ctx context.Context) {
	p.mu.RLock()
	tasks := make([]*periodicTask, 0, len(p.tasks))
	for _, task := range p.tasks {
		tasks = append(tasks, task)
	}
	p.mu.RUnlock()

	now := p.now()
	for _, task := range tasks {
		if err := p.scheduleIfDue(ctx, task, now); err != nil {
			p.logger.ErrorContext(ctx, "failed to schedule periodic task",
				logger.TaskName(task.name()),
				logger.Error(err))
		}
	}
}

func (p *PeriodicEnqueuer) scheduleIfDue(ctx context.Context, task *periodicTask, now time.Time) error {
	p.mu.RLock()
	last := task.lastScheduledAt
	p.mu.RUnlock()

	var nextRun time.Time
	if last == nil {
		nextRun = task.schedule.Next(now)
	} else {
		nextRun = task.schedule.Next(*last)
		if nextRun.After(now) {
			return nil
		}
	}

	existing, err := p.repo.FindPending(ctx, task.module, task.function)
	if err != nil {
		return fmt.Errorf("failed to look up pending run: %w", err)
	}
	if existing != nil {
		at := now
		if existing.ScheduledTime != nil {
			at = *existing.ScheduledTime
		}
		p.setLastScheduled(task, at)
		p.logger.DebugContext(ctx, "periodic task already pending",
			logger.TaskName(task.name()),
			logger.TaskID(existing.ID),
			slog.Time("scheduled_for", at))
		return nil
	}

	id, err := p.repo.Enqueue(ctx, task.module, task.function, task.params,
		WithScheduledAt(nextRun),
		WithPriority(task.priority),
		WithMaxRetries(task.maxRetries),
	)
	if err != nil {
		return fmt.Errorf("failed to create periodic task: %w", err)
	}
	p.setLastScheduled(task, nextRun)

	p.logger.InfoContext(ctx, "created periodic task",
		logger.TaskName(task.name()),
		logger.TaskID(id),
		slog.Time("scheduled_for", nextRun),
		slog.Bool("first_run", last == nil))

	return nil
}

func (p *PeriodicEnqueuer) setLastScheduled(task *periodicTask, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	task.lastScheduledAt = &at
}
