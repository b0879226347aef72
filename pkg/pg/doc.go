// Package pg bootstraps and manages PostgreSQL access on top of pgx/v5.
//
// It covers two layers. The bootstrap layer opens a *pgxpool.Pool from an
// environment-driven Config (Connect), exposes a health probe (Healthcheck)
// and applies goose migrations from disk or an embedded filesystem (Migrate).
// The session layer wraps the pool in an explicit DB handle that the schema
// reconciler and the task scheduler consume through the Database interface.
//
// # Sessions
//
// A Session holds at most one connection. It connects lazily on the first
// statement and, when created with auto-disconnect, returns the connection to
// the pool after every statement that runs outside a transaction:
//
//	db, err := pg.NewFromPool(pool)
//	if err != nil {
//		return err
//	}
//
//	rows, err := db.Execute(ctx, "SELECT task_id FROM tasks WHERE status IS NULL")
//
// Transact groups statements into one unit of work. Row locks taken by a
// SELECT ... FOR UPDATE are held until fn returns and the transaction commits:
//
//	err = db.Transact(ctx, func(ctx context.Context, tx pg.Executor) error {
//		rows, err := tx.Execute(ctx, "SELECT task_id FROM tasks LIMIT 1 FOR UPDATE SKIP LOCKED")
//		if err != nil {
//			return err
//		}
//		...
//	})
//
// A failed statement rolls back the open transaction before the error is
// returned, so a session never stays in an aborted state. Every connection is
// configured with default_transaction_isolation and
// idle_in_transaction_session_timeout from Config.
//
// # Errors
//
// Connect failures are reported as *ConnectionError, statement failures as
// *StatementError carrying the SQL text and the server message. Helpers such
// as IsDuplicateKeyError classify the underlying *pgconn.PgError.
package pg
