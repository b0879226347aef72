// Package queue implements a PostgreSQL-backed task queue.
//
// Tasks live in one table (see TaskTable) and move through a small state
// machine kept in the status column: NULL (never claimed), working, error
// and done. Workers claim tasks with AcquireNext, which tries three tiers in
// strict order and returns the first row it can lock:
//
//  1. scheduled: unclaimed tasks whose scheduled_time has passed, oldest first
//  2. retry: failed tasks with retry budget left, longest-failed first
//  3. plain: unclaimed tasks without a scheduled_time, highest priority first
//
// Each tier query locks its row with FOR UPDATE SKIP LOCKED inside the same
// transaction that marks it working, so concurrent workers in any number of
// processes never claim the same task twice and never block each other.
//
// # Components
//
//   - Scheduler is the PostgreSQL Repository built on pkg/pg.
//   - MemoryStore is an in-process Repository with the same tier semantics.
//   - Enqueuer adds typed tasks named after their payload type.
//   - Worker claims tasks and dispatches them to registered Handlers.
//   - PeriodicEnqueuer keeps one pending run of every registered Schedule.
//   - ChanNotifier and RedisNotifier wake idle workers on enqueue.
//
// # Usage
//
//	pool, _ := pg.Connect(ctx, cfg)
//	db, _ := pg.NewFromPool(pool)
//	store, _ := queue.NewScheduler(db, queue.WithDefaultMaxRetries(3))
//
//	type SendEmail struct{ UserID int64 }
//
//	enq, _ := queue.NewEnqueuer[SendEmail](store)
//	_, _ = enq.Enqueue(ctx, SendEmail{UserID: 42}, queue.WithDelay(time.Minute))
//
//	w, _ := queue.NewWorker(store, queue.WithMaxConcurrentTasks(4))
//	_ = w.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, p SendEmail) (string, error) {
//		return "sent", nil
//	}))
//	g.Go(w.Run(ctx))
//
// # Error Handling
//
// Sentinel errors such as ErrEnqueue, ErrClaim and ErrTaskNotFound can be
// checked with errors.Is. AcquireNext returns nil, nil when nothing is
// eligible; an empty queue is not an error.
package queue
