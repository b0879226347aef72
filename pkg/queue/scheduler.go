package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/taskq/pkg/condition"
	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/pg"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Scheduler is the PostgreSQL task store. All coordination between
// concurrent claimants, in this process or any other, is delegated to row
// locks taken with FOR UPDATE SKIP LOCKED; Scheduler itself holds no shared
// mutable state and is safe for concurrent use.
type Scheduler struct {
	storeOptions
	db pg.Database
}

var _ Repository = (*Scheduler)(nil)

// NewScheduler creates a task scheduler over db.
func NewScheduler(db pg.Database, opts ...SchedulerOption) (*Scheduler, error) {
	if db == nil {
		return nil, ErrDatabaseNil
	}

	return &Scheduler{
		storeOptions: newStoreOptions(opts),
		db:           db,
	}, nil
}

func (s *Scheduler) tableIdent() string {
	return pgx.Identifier{s.table}.Sanitize()
}

func (s *Scheduler) returning() string {
	return " RETURNING " + strings.Join(taskColumns, ", ")
}

// Enqueue inserts a new unclaimed task and returns its id. Params that are
// not already a string, []byte or json.RawMessage are JSON-encoded.
func (s *Scheduler) Enqueue(ctx context.Context, module, function string, params any, opts ...EnqueueOption) (int64, error) {
	if module == "" || function == "" {
		return 0, errors.Join(ErrEnqueue, ErrModuleRequired)
	}

	o := &enqueueOptions{priority: s.defaultPriority, maxRetries: s.defaultMaxRetries}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.validate(); err != nil {
		return 0, errors.Join(ErrEnqueue, err)
	}

	encoded, err := encodeValue(params)
	if err != nil {
		return 0, errors.Join(ErrEnqueue, err)
	}

	now := s.now()
	query := "INSERT INTO " + s.tableIdent() + ` (module, func, params, retry_count, max_retry_count,
  scheduled_time, defer_time, create_time, priority, parent_task_id)
VALUES (@module, @func, @params, 0, @max_retry_count,
  @scheduled_time, @defer_time, @create_time, @priority, @parent_task_id)
RETURNING task_id`

	rows, err := s.db.Execute(ctx, query, pgx.NamedArgs{
		"module":          module,
		"func":            function,
		"params":          encoded,
		"max_retry_count": o.maxRetries,
		"scheduled_time":  o.scheduledTime(now),
		"defer_time":      o.deferTime,
		"create_time":     now,
		"priority":        int(o.priority),
		"parent_task_id":  o.parentID,
	})
	if err != nil {
		return 0, errors.Join(ErrEnqueue, err)
	}
	if len(rows) == 0 {
		return 0, errors.Join(ErrEnqueue, errors.New("insert returned no task_id"))
	}

	id := rows[0].Int64(ColTaskID)
	s.logger.DebugContext(ctx, "task enqueued",
		logger.TaskID(id),
		logger.TaskName(TaskName(module, function)))

	s.notify(ctx, id)
	return id, nil
}

// AcquireNext claims the next eligible task. Tiers are tried in order and the
// first row found is locked, marked working and returned, all in one
// transaction. Rows locked by concurrent claimants are skipped, never waited
// on. It returns nil, nil when no tier has an eligible row.
func (s *Scheduler) AcquireNext(ctx context.Context) (*Task, error) {
	now := s.now()

	var claimed *Task
	var tier Tier
	err := s.db.Transact(ctx, func(ctx context.Context, tx pg.Executor) error {
		for _, tq := range tierQueries {
			cond, err := condition.Build(tq.fields(now))
			if err != nil {
				return err
			}

			query := "SELECT task_id FROM " + s.tableIdent() + cond.Where() +
				" ORDER BY " + tq.orderBy + " LIMIT 1 FOR UPDATE SKIP LOCKED"
			rows, err := tx.Execute(ctx, query, cond.Params)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				continue
			}

			updated, err := tx.Execute(ctx,
				"UPDATE "+s.tableIdent()+
					" SET status = @status, started_time = @started_time, worker_host = @worker_host"+
					" WHERE task_id = @task_id"+s.returning(),
				pgx.NamedArgs{
					"status":       string(StatusWorking),
					"started_time": now,
					"worker_host":  s.workerHost,
					"task_id":      rows[0].Int64(ColTaskID),
				})
			if err != nil {
				return err
			}
			if len(updated) == 0 {
				return fmt.Errorf("locked task %d vanished before update", rows[0].Int64(ColTaskID))
			}

			task := taskFromRecord(updated[0])
			claimed, tier = &task, tq.tier
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrClaim, err)
	}

	if claimed != nil {
		s.logger.DebugContext(ctx, "task claimed",
			logger.TaskID(claimed.ID),
			logger.TaskName(claimed.Name()),
			slog.String("tier", string(tier)),
			logger.WorkerHost(s.workerHost))
	}
	return claimed, nil
}

// RecordFailure marks a task as failed. The retry budget is consumed only
// when the task has one (max_retry_count > 0); tasks without retries keep
// their retry_count and are never re-surfaced. Each call increments, so call
// it exactly once per failed attempt.
func (s *Scheduler) RecordFailure(ctx context.Context, taskID int64, errText string) error {
	query := "UPDATE " + s.tableIdent() + ` SET status = @status, finished_time = @finished_time, result = @result,
  retry_count = CASE WHEN max_retry_count > 0 THEN retry_count + 1 ELSE retry_count END
WHERE task_id = @task_id RETURNING task_id`

	rows, err := s.db.Execute(ctx, query, pgx.NamedArgs{
		"status":        string(StatusError),
		"finished_time": s.now(),
		"result":        errText,
		"task_id":       taskID,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Complete marks a task as done and stores its result.
func (s *Scheduler) Complete(ctx context.Context, taskID int64, result string) error {
	return s.UpdateTask(ctx, taskID, map[string]any{
		ColStatus:       StatusDone,
		ColFinishedTime: s.now(),
		ColResult:       result,
	})
}

// UpdateTask patches the given columns. Keys must be task columns; task_id
// cannot be changed. params and result are encoded like Enqueue params.
func (s *Scheduler) UpdateTask(ctx context.Context, taskID int64, fields map[string]any) error {
	if len(fields) == 0 {
		return ErrNoFields
	}

	args := pgx.NamedArgs{"task_id": taskID}
	sets := make([]string, 0, len(fields))
	for _, col := range slices.Sorted(maps.Keys(fields)) {
		value, err := columnValue(col, fields[col])
		if err != nil {
			return err
		}
		sets = append(sets, col+" = @set_"+col)
		args["set_"+col] = value
	}

	query := "UPDATE " + s.tableIdent() + " SET " + strings.Join(sets, ", ") +
		" WHERE task_id = @task_id RETURNING task_id"
	rows, err := s.db.Execute(ctx, query, args)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// columnValue validates an update key and converts its value for the driver.
func columnValue(col string, v any) (any, error) {
	if col == ColTaskID {
		return nil, ErrImmutableField
	}
	if !isTaskColumn(col) {
		return nil, errors.Join(ErrUnknownField, fmt.Errorf("column %q", col))
	}

	switch x := v.(type) {
	case Status:
		if x == StatusUnset {
			return nil, nil
		}
		return string(x), nil
	case string:
		// An empty status is the unset state; '' would match no tier.
		if col == ColStatus && x == "" {
			return nil, nil
		}
	case Priority:
		return int(x), nil
	}

	if col == ColParams || col == ColResult {
		return encodeValue(v)
	}
	return v, nil
}

// GetTask loads one task.
func (s *Scheduler) GetTask(ctx context.Context, taskID int64) (*Task, error) {
	rows, err := s.db.Execute(ctx,
		"SELECT "+strings.Join(taskColumns, ", ")+" FROM "+s.tableIdent()+" WHERE task_id = @task_id",
		pgx.NamedArgs{"task_id": taskID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrTaskNotFound
	}
	task := taskFromRecord(rows[0])
	return &task, nil
}

// ListTasks returns tasks matching filter ordered by task_id. A limit of
// zero or less means the default of 100.
func (s *Scheduler) ListTasks(ctx context.Context, filter condition.Fields, limit int) ([]Task, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	cond, err := condition.Build(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + strings.Join(taskColumns, ", ") + " FROM " + s.tableIdent() + cond.Where() +
		" ORDER BY task_id ASC LIMIT " + strconv.Itoa(listLimit(limit))
	rows, err := s.db.Execute(ctx, query, cond.Params)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, taskFromRecord(r))
	}
	return tasks, nil
}

// FindPending returns the oldest unclaimed task for module.function, or nil.
func (s *Scheduler) FindPending(ctx context.Context, module, function string) (*Task, error) {
	tasks, err := s.ListTasks(ctx, condition.Fields{
		ColStatus: nil,
		ColModule: module,
		ColFunc:   function,
	}, 1)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

const statsQuery = `SELECT
  count(*) FILTER (WHERE status IS NULL AND (scheduled_time IS NULL OR scheduled_time <= @now)) AS ready,
  count(*) FILTER (WHERE status IS NULL AND scheduled_time > @now) AS scheduled,
  count(*) FILTER (WHERE status = 'working') AS working,
  count(*) FILTER (WHERE status = 'error' AND retry_count < max_retry_count) AS retrying,
  count(*) FILTER (WHERE status = 'error' AND retry_count >= max_retry_count) AS exhausted,
  count(*) FILTER (WHERE status = 'done') AS done,
  count(*) AS total
FROM `

// Stats counts tasks by state.
func (s *Scheduler) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.Execute(ctx, statsQuery+s.tableIdent(), pgx.NamedArgs{"now": s.now()})
	if err != nil {
		return Stats{}, err
	}
	if len(rows) == 0 {
		return Stats{}, nil
	}

	r := rows[0]
	st := Stats{
		Ready:     r.Int64("ready"),
		Scheduled: r.Int64("scheduled"),
		Working:   r.Int64("working"),
		Retrying:  r.Int64("retrying"),
		Exhausted: r.Int64("exhausted"),
		Done:      r.Int64("done"),
		Total:     r.Int64("total"),
	}
	st.Other = st.Total - st.Ready - st.Scheduled - st.Working - st.Retrying - st.Exhausted - st.Done
	return st, nil
}

func validateFilter(filter condition.Fields) error {
	for key := range filter {
		f, err := condition.ParseField(key)
		if err != nil {
			return fmt.Errorf("filter %q: %w", key, err)
		}
		for _, col := range f.Columns {
			if !isTaskColumn(col) {
				return errors.Join(ErrUnknownField, fmt.Errorf("filter %q", key))
			}
		}
	}
	return nil
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

func taskFromRecord(r pg.Record) Task {
	return Task{
		ID:            r.Int64(ColTaskID),
		Module:        r.String(ColModule),
		Func:          r.String(ColFunc),
		Params:        r.NullString(ColParams),
		Result:        r.NullString(ColResult),
		Status:        Status(r.String(ColStatus)),
		RetryCount:    int(r.Int64(ColRetryCount)),
		MaxRetryCount: int(r.Int64(ColMaxRetryCount)),
		ScheduledTime: r.NullTime(ColScheduledTime),
		DeferTime:     r.NullTime(ColDeferTime),
		CreateTime:    r.NullTime(ColCreateTime),
		StartedTime:   r.NullTime(ColStartedTime),
		FinishedTime:  r.NullTime(ColFinishedTime),
		Priority:      Priority(r.Int64(ColPriority)),
		WorkerHost:    r.NullString(ColWorkerHost),
		ParentTaskID:  r.NullInt64(ColParentTaskID),
	}
}
