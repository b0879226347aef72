package queue_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/taskq/pkg/condition"
	"github.com/dmitrymomot/taskq/pkg/pg"
	"github.com/dmitrymomot/taskq/pkg/queue"
)

type statement struct {
	sql  string
	args pgx.NamedArgs
}

// fakeDB records statements and answers them through respond.
type fakeDB struct {
	mu           sync.Mutex
	respond      func(sql string, args pgx.NamedArgs) ([]pg.Record, error)
	statements   []statement
	transactions int
	rolledBack   int
}

func (f *fakeDB) Execute(_ context.Context, sql string, args ...any) ([]pg.Record, error) {
	var named pgx.NamedArgs
	if len(args) > 0 {
		named, _ = args[0].(pgx.NamedArgs)
	}

	f.mu.Lock()
	f.statements = append(f.statements, statement{sql: sql, args: named})
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return nil, nil
	}
	return respond(sql, named)
}

func (f *fakeDB) Transact(ctx context.Context, fn func(context.Context, pg.Executor) error) error {
	f.mu.Lock()
	f.transactions++
	f.mu.Unlock()

	if err := fn(ctx, f); err != nil {
		f.mu.Lock()
		f.rolledBack++
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeDB) sqls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.statements))
	for _, s := range f.statements {
		out = append(out, s.sql)
	}
	return out
}

var allColumns = []string{
	"task_id", "module", "func", "params", "result", "status",
	"retry_count", "max_retry_count", "scheduled_time", "defer_time",
	"create_time", "started_time", "finished_time", "priority",
	"worker_host", "parent_task_id",
}

func taskRecord(id int64, status string, started time.Time) pg.Record {
	return pg.NewRecord(allColumns, []any{
		id, "billing", "charge", `{"amount":10}`, nil, status,
		int32(1), int32(3), nil, nil,
		started.Add(-time.Minute), started, nil, int32(50),
		"test-host", nil,
	})
}

func idRecord(id int64) []pg.Record {
	return []pg.Record{pg.NewRecord([]string{"task_id"}, []any{id})}
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newScheduler(t *testing.T, db pg.Database, opts ...queue.SchedulerOption) *queue.Scheduler {
	t.Helper()
	opts = append([]queue.SchedulerOption{
		queue.WithClock(func() time.Time { return fixedNow }),
		queue.WithWorkerHost("test-host"),
	}, opts...)
	s, err := queue.NewScheduler(db, opts...)
	require.NoError(t, err)
	return s
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	_, err := queue.NewScheduler(nil)
	require.ErrorIs(t, err, queue.ErrDatabaseNil)

	s, err := queue.NewScheduler(&fakeDB{}, queue.WithWorkerHost("node-1"))
	require.NoError(t, err)
	assert.Equal(t, "node-1", s.WorkerHost())
}

func TestScheduler_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("inserts and returns the id", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(17), nil
		}}
		n := queue.NewChanNotifier()
		s := newScheduler(t, db, queue.WithNotifier(n), queue.WithDefaultMaxRetries(3))

		id, err := s.Enqueue(context.Background(), "billing", "charge", map[string]int{"amount": 10},
			queue.WithPriority(queue.PriorityHigh),
			queue.WithDelay(time.Hour),
			queue.WithParent(5))
		require.NoError(t, err)
		assert.Equal(t, int64(17), id)

		require.Len(t, db.statements, 1)
		st := db.statements[0]
		assert.True(t, strings.HasPrefix(st.sql, `INSERT INTO "tasks" (`), st.sql)
		assert.Contains(t, st.sql, "RETURNING task_id")
		assert.Equal(t, "billing", st.args["module"])
		assert.Equal(t, "charge", st.args["func"])
		assert.JSONEq(t, `{"amount":10}`, *st.args["params"].(*string))
		assert.Equal(t, 3, st.args["max_retry_count"])
		assert.Equal(t, 75, st.args["priority"])
		assert.Equal(t, fixedNow, st.args["create_time"])
		require.NotNil(t, st.args["scheduled_time"].(*time.Time))
		assert.Equal(t, fixedNow.Add(time.Hour), *st.args["scheduled_time"].(*time.Time))
		assert.Equal(t, int64(5), *st.args["parent_task_id"].(*int64))

		select {
		case <-n.C():
		default:
			t.Fatal("expected a wake-up signal")
		}
	})

	t.Run("plain task has no scheduled time", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(1), nil
		}}
		s := newScheduler(t, db)

		_, err := s.Enqueue(context.Background(), "m", "f", "raw text")
		require.NoError(t, err)
		assert.Nil(t, db.statements[0].args["scheduled_time"])
		assert.Equal(t, "raw text", *db.statements[0].args["params"].(*string))
	})

	t.Run("custom table is quoted", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(1), nil
		}}
		s := newScheduler(t, db, queue.WithTable("Jobs"))

		_, err := s.Enqueue(context.Background(), "m", "f", nil)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(db.statements[0].sql, `INSERT INTO "Jobs" (`))
	})

	t.Run("database error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("connection reset")
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return nil, boom
		}}
		n := queue.NewChanNotifier()
		s := newScheduler(t, db, queue.WithNotifier(n))

		_, err := s.Enqueue(context.Background(), "m", "f", nil)
		require.ErrorIs(t, err, queue.ErrEnqueue)
		require.ErrorIs(t, err, boom)

		select {
		case <-n.C():
			t.Fatal("failed enqueue must not notify")
		default:
		}
	})

	t.Run("validation happens before the insert", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)

		_, err := s.Enqueue(context.Background(), "m", "", nil)
		require.ErrorIs(t, err, queue.ErrModuleRequired)
		_, err = s.Enqueue(context.Background(), "m", "f", nil, queue.WithMaxRetries(-1))
		require.ErrorIs(t, err, queue.ErrInvalidRetries)
		assert.Empty(t, db.statements)
	})
}

func TestScheduler_AcquireNext(t *testing.T) {
	t.Parallel()

	const (
		scheduledSelect = `SELECT task_id FROM "tasks" WHERE scheduled_time IS NOT NULL AND scheduled_time <= @scheduled_time AND status IS NULL ORDER BY scheduled_time ASC, priority DESC LIMIT 1 FOR UPDATE SKIP LOCKED`
		retrySelect     = `SELECT task_id FROM "tasks" WHERE retry_count < max_retry_count AND status = @status ORDER BY finished_time ASC, priority DESC LIMIT 1 FOR UPDATE SKIP LOCKED`
		plainSelect     = `SELECT task_id FROM "tasks" WHERE scheduled_time IS NULL AND status IS NULL ORDER BY priority DESC, task_id ASC LIMIT 1 FOR UPDATE SKIP LOCKED`
	)

	t.Run("tiers are tried in order", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(sql string, args pgx.NamedArgs) ([]pg.Record, error) {
			switch {
			case sql == scheduledSelect:
				assert.Equal(t, fixedNow, args["scheduled_time"])
				return nil, nil
			case sql == retrySelect:
				assert.Equal(t, "error", args["status"])
				return idRecord(7), nil
			case strings.HasPrefix(sql, "UPDATE"):
				return []pg.Record{taskRecord(7, "working", fixedNow)}, nil
			}
			t.Errorf("unexpected statement: %s", sql)
			return nil, nil
		}}
		s := newScheduler(t, db)

		task, err := s.AcquireNext(context.Background())
		require.NoError(t, err)
		require.NotNil(t, task)

		assert.Equal(t, int64(7), task.ID)
		assert.Equal(t, queue.StatusWorking, task.Status)
		assert.Equal(t, "billing.charge", task.Name())
		assert.Equal(t, 1, task.RetryCount)
		assert.Equal(t, 3, task.MaxRetryCount)
		assert.Equal(t, queue.PriorityMedium, task.Priority)
		assert.Nil(t, task.Result)
		assert.Nil(t, task.ParentTaskID)

		sqls := db.sqls()
		require.Len(t, sqls, 3)
		assert.Equal(t, scheduledSelect, sqls[0])
		assert.Equal(t, retrySelect, sqls[1])
		assert.Contains(t, sqls[2], `UPDATE "tasks" SET status = @status, started_time = @started_time, worker_host = @worker_host WHERE task_id = @task_id RETURNING`)
		assert.Equal(t, 1, db.transactions, "lock and update must share one transaction")

		update := db.statements[2].args
		assert.Equal(t, "working", update["status"])
		assert.Equal(t, fixedNow, update["started_time"])
		assert.Equal(t, "test-host", update["worker_host"])
		assert.Equal(t, int64(7), update["task_id"])
	})

	t.Run("empty queue", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)

		task, err := s.AcquireNext(context.Background())
		require.NoError(t, err)
		assert.Nil(t, task)
		assert.Equal(t, []string{scheduledSelect, retrySelect, plainSelect}, db.sqls())
		assert.Zero(t, db.rolledBack)
	})

	t.Run("retry tier excludes exhausted tasks", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)

		_, err := s.AcquireNext(context.Background())
		require.NoError(t, err)

		sqls := db.sqls()
		require.Len(t, sqls, 3)
		assert.Contains(t, sqls[1], "retry_count < max_retry_count")
		assert.NotContains(t, sqls[1], "retry_count <= max_retry_count")
		assert.Equal(t, "error", db.statements[1].args["status"])
	})

	t.Run("scheduled tier wins without further queries", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(sql string, _ pgx.NamedArgs) ([]pg.Record, error) {
			if sql == scheduledSelect {
				return idRecord(3), nil
			}
			return []pg.Record{taskRecord(3, "working", fixedNow)}, nil
		}}
		s := newScheduler(t, db)

		task, err := s.AcquireNext(context.Background())
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Len(t, db.sqls(), 2)
	})

	t.Run("statement error rolls back", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("deadlock detected")
		db := &fakeDB{respond: func(sql string, _ pgx.NamedArgs) ([]pg.Record, error) {
			if sql == retrySelect {
				return nil, boom
			}
			return nil, nil
		}}
		s := newScheduler(t, db)

		task, err := s.AcquireNext(context.Background())
		require.ErrorIs(t, err, queue.ErrClaim)
		require.ErrorIs(t, err, boom)
		assert.Nil(t, task)
		assert.Equal(t, 1, db.rolledBack)
	})
}

func TestScheduler_RecordFailure(t *testing.T) {
	t.Parallel()

	t.Run("updates the row", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(9), nil
		}}
		s := newScheduler(t, db)

		require.NoError(t, s.RecordFailure(context.Background(), 9, "timeout"))

		st := db.statements[0]
		assert.Contains(t, st.sql, "CASE WHEN max_retry_count > 0 THEN retry_count + 1 ELSE retry_count END")
		assert.Equal(t, "error", st.args["status"])
		assert.Equal(t, "timeout", st.args["result"])
		assert.Equal(t, fixedNow, st.args["finished_time"])
		assert.Equal(t, int64(9), st.args["task_id"])
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		s := newScheduler(t, &fakeDB{})
		require.ErrorIs(t, s.RecordFailure(context.Background(), 9, "x"), queue.ErrTaskNotFound)
	})
}

func TestScheduler_UpdateTask(t *testing.T) {
	t.Parallel()

	t.Run("builds a sorted SET list", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(4), nil
		}}
		s := newScheduler(t, db)

		err := s.UpdateTask(context.Background(), 4, map[string]any{
			queue.ColStatus:   queue.StatusUnset,
			queue.ColPriority: queue.PriorityLow,
			queue.ColParams:   map[string]bool{"dry_run": true},
		})
		require.NoError(t, err)

		st := db.statements[0]
		assert.Equal(t,
			`UPDATE "tasks" SET params = @set_params, priority = @set_priority, status = @set_status WHERE task_id = @task_id RETURNING task_id`,
			st.sql)
		assert.Nil(t, st.args["set_status"])
		assert.Equal(t, 25, st.args["set_priority"])
		assert.JSONEq(t, `{"dry_run":true}`, *st.args["set_params"].(*string))
	})

	t.Run("empty status string binds NULL", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(4), nil
		}}
		s := newScheduler(t, db)

		require.NoError(t, s.UpdateTask(context.Background(), 4, map[string]any{
			queue.ColStatus: "",
			queue.ColFunc:   "",
		}))
		st := db.statements[0]
		assert.Contains(t, st.args, "set_status")
		assert.Nil(t, st.args["set_status"])
		assert.Equal(t, "", st.args["set_func"])
	})

	t.Run("complete", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return idRecord(4), nil
		}}
		s := newScheduler(t, db)

		require.NoError(t, s.Complete(context.Background(), 4, "ok"))
		st := db.statements[0]
		assert.Equal(t, "done", st.args["set_status"])
		assert.Equal(t, fixedNow, st.args["set_finished_time"])
		assert.Equal(t, "ok", *st.args["set_result"].(*string))
	})

	t.Run("rejects bad fields", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)
		ctx := context.Background()

		require.ErrorIs(t, s.UpdateTask(ctx, 1, nil), queue.ErrNoFields)
		require.ErrorIs(t, s.UpdateTask(ctx, 1, map[string]any{"task_id": 2}), queue.ErrImmutableField)
		require.ErrorIs(t, s.UpdateTask(ctx, 1, map[string]any{"status; DROP TABLE tasks": 2}), queue.ErrUnknownField)
		assert.Empty(t, db.statements)
	})

	t.Run("missing task", func(t *testing.T) {
		t.Parallel()
		s := newScheduler(t, &fakeDB{})
		err := s.UpdateTask(context.Background(), 1, map[string]any{queue.ColPriority: 1})
		require.ErrorIs(t, err, queue.ErrTaskNotFound)
	})
}

func TestScheduler_Reads(t *testing.T) {
	t.Parallel()

	t.Run("get task", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return []pg.Record{taskRecord(2, "done", fixedNow)}, nil
		}}
		s := newScheduler(t, db)

		task, err := s.GetTask(context.Background(), 2)
		require.NoError(t, err)
		assert.Equal(t, queue.StatusDone, task.Status)
		require.NotNil(t, task.Params)
		assert.JSONEq(t, `{"amount":10}`, *task.Params)

		_, err = newScheduler(t, &fakeDB{}).GetTask(context.Background(), 2)
		require.ErrorIs(t, err, queue.ErrTaskNotFound)
	})

	t.Run("list tasks", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)

		_, err := s.ListTasks(context.Background(), condition.Fields{queue.ColModule: "billing"}, 5000)
		require.NoError(t, err)
		assert.Equal(t,
			`SELECT task_id, module, func, params, result, status, retry_count, max_retry_count, scheduled_time, defer_time, create_time, started_time, finished_time, priority, worker_host, parent_task_id FROM "tasks" WHERE module = @module ORDER BY task_id ASC LIMIT 1000`,
			db.sqls()[0])
		assert.Equal(t, "billing", db.statements[0].args["module"])

		_, err = s.ListTasks(context.Background(), condition.Fields{"owner": 1}, 0)
		require.ErrorIs(t, err, queue.ErrUnknownField)
	})

	t.Run("find pending", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{}
		s := newScheduler(t, db)

		task, err := s.FindPending(context.Background(), "reports", "daily")
		require.NoError(t, err)
		assert.Nil(t, task)
		assert.Contains(t, db.sqls()[0], "WHERE func = @func AND module = @module AND status IS NULL ORDER BY task_id ASC LIMIT 1")
	})

	t.Run("stats", func(t *testing.T) {
		t.Parallel()
		db := &fakeDB{respond: func(string, pgx.NamedArgs) ([]pg.Record, error) {
			return []pg.Record{pg.NewRecord(
				[]string{"ready", "scheduled", "working", "retrying", "exhausted", "done", "total"},
				[]any{int64(4), int64(1), int64(2), int64(1), int64(1), int64(10), int64(20)},
			)}, nil
		}}
		s := newScheduler(t, db)

		stats, err := s.Stats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, queue.Stats{
			Ready: 4, Scheduled: 1, Working: 2, Retrying: 1, Exhausted: 1, Done: 10, Other: 1, Total: 20,
		}, stats)
		assert.Equal(t, fixedNow, db.statements[0].args["now"])
	})
}
