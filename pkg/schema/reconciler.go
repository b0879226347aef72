package schema

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/pg"
)

const tableExistsQuery = `
SELECT EXISTS (
  SELECT 1 FROM information_schema.tables
  WHERE table_schema = @schema AND table_name = @table
) AS present`

const columnsQuery = `
SELECT column_name::text AS column_name,
       data_type::text AS data_type,
       character_maximum_length::bigint AS max_length,
       (is_nullable = 'YES') AS nullable,
       column_default::text AS column_default,
       (is_identity = 'YES') AS is_identity
FROM information_schema.columns
WHERE table_schema = @schema AND table_name = @table
ORDER BY ordinal_position`

// Reconciler makes live tables match their definitions. It only changes
// shape; it never reads or moves row data.
type Reconciler struct {
	db     pg.Database
	logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger used to report drift and applied changes.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reconciler over db.
func New(db pg.Database, opts ...Option) (*Reconciler, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	r := &Reconciler{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("schema"))
	return r, nil
}

// Plan introspects the live table and computes the difference to t.
func (r *Reconciler) Plan(ctx context.Context, t Table) (*Diff, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	args := pgx.NamedArgs{"schema": t.SchemaName(), "table": t.Name}
	diff := &Diff{Table: t.QualifiedName()}

	rows, err := r.db.Execute(ctx, tableExistsQuery, args)
	if err != nil {
		return nil, errors.Join(ErrIntrospectFailed, err)
	}
	if len(rows) == 0 || !rows[0].Bool("present") {
		diff.Missing = true
		diff.Create = createStatement(t)
		return diff, nil
	}

	rows, err = r.db.Execute(ctx, columnsQuery, args)
	if err != nil {
		return nil, errors.Join(ErrIntrospectFailed, err)
	}
	live := make([]liveColumn, 0, len(rows))
	for _, row := range rows {
		live = append(live, liveColumn{
			Name:      row.String("column_name"),
			DataType:  row.String("data_type"),
			MaxLength: row.NullInt64("max_length"),
			Nullable:  row.Bool("nullable"),
			Default:   row.NullString("column_default"),
			Identity:  row.Bool("is_identity"),
		})
	}

	diff.Changes = diffColumns(t, live)
	return diff, nil
}

// Reconcile brings the live table in line with t.
//
// It returns true when the table already matches or the changes were
// applied, and false when the table is missing or drifted and apply is
// false. Applied changes run in a single transaction: the first failing
// statement rolls back every change made by this call.
func (r *Reconciler) Reconcile(ctx context.Context, t Table, apply bool) (bool, error) {
	diff, err := r.Plan(ctx, t)
	if err != nil {
		return false, err
	}

	log := r.logger.With(logger.Table(diff.Table))

	if diff.Empty() {
		log.DebugContext(ctx, "table already reconciled")
		return true, nil
	}

	if !apply {
		log.WarnContext(ctx, "table needs reconciliation",
			slog.Bool("missing", diff.Missing),
			logger.Error(diff.Err()),
		)
		return false, nil
	}

	stmts := diff.Statements()
	err = r.db.Transact(ctx, func(ctx context.Context, tx pg.Executor) error {
		for _, stmt := range stmts {
			if _, err := tx.Execute(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, errors.Join(ErrApplyFailed, err)
	}

	log.InfoContext(ctx, "table reconciled",
		slog.Bool("created", diff.Missing),
		slog.Int("statements", len(stmts)),
	)
	return true, nil
}
