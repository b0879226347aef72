package pg

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is a single acquired connection. *pgxpool.Conn satisfies it.
type Conn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Release()
}

// Connector hands out connections.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Conn, error)

func (f ConnectorFunc) Connect(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// PoolConnector acquires connections from a pgx pool.
func PoolConnector(pool *pgxpool.Pool) Connector {
	return ConnectorFunc(func(ctx context.Context) (Conn, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Executor runs a single statement and returns its rows.
type Executor interface {
	Execute(ctx context.Context, sql string, args ...any) ([]Record, error)
}

// Database is the capability set consumed by the schema reconciler and the
// task scheduler: single statements plus a unit of work in which a locking
// read and the following update commit together.
type Database interface {
	Executor
	Transact(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error
}

// DB is a database handle. It is safe for concurrent use: every Execute and
// Transact call runs on its own session which is released on every exit path.
type DB struct {
	connector Connector
	logger    *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger used for rollback and release diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		if l != nil {
			db.logger = l
		}
	}
}

// New creates a database handle over connector.
func New(connector Connector, opts ...Option) (*DB, error) {
	if connector == nil {
		return nil, ErrNilConnector
	}
	db := &DB{
		connector: connector,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// NewFromPool creates a database handle backed by a pgx pool.
func NewFromPool(pool *pgxpool.Pool, opts ...Option) (*DB, error) {
	if pool == nil {
		return nil, ErrNilConnector
	}
	return New(PoolConnector(pool), opts...)
}

// Session returns a new, not yet connected session. With autoDisconnect the
// connection goes back to the pool after every statement or transaction;
// without it the caller keeps the connection until Disconnect(ctx, true).
func (db *DB) Session(autoDisconnect bool) *Session {
	return &Session{db: db, autoDisconnect: autoDisconnect}
}

func (db *DB) Execute(ctx context.Context, sql string, args ...any) ([]Record, error) {
	s := db.Session(true)
	defer s.Disconnect(ctx, true) //nolint:errcheck
	return s.Execute(ctx, sql, args...)
}

func (db *DB) Transact(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	s := db.Session(true)
	defer s.Disconnect(ctx, true) //nolint:errcheck
	return s.Transact(ctx, fn)
}

// Session owns at most one connection at a time. It is not safe for
// concurrent use; create one session per goroutine.
type Session struct {
	db             *DB
	conn           Conn
	tx             pgx.Tx
	inTx           bool
	autoDisconnect bool
}

var (
	_ Database = (*DB)(nil)
	_ Database = (*Session)(nil)
)

// Connected reports whether the session currently holds a connection.
func (s *Session) Connected() bool {
	return s.conn != nil
}

// Connect acquires a connection. It is a no-op when one is already held,
// unless reconnect is set, in which case the old connection is dropped first.
func (s *Session) Connect(ctx context.Context, reconnect bool) error {
	if s.conn != nil {
		if !reconnect {
			return nil
		}
		if err := s.Disconnect(ctx, true); err != nil {
			s.db.logger.WarnContext(ctx, "rollback before reconnect failed", "error", err)
		}
	}

	conn, err := s.db.connector.Connect(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	s.conn = conn
	return nil
}

// Disconnect releases the connection. Without force it only acts when the
// session was created with autoDisconnect and no transaction is open. With
// force an open transaction is rolled back and the connection is always released.
func (s *Session) Disconnect(ctx context.Context, force bool) error {
	if s.conn == nil {
		return nil
	}
	if !force && (!s.autoDisconnect || s.inTx) {
		return nil
	}

	err := s.rollback(ctx)
	s.conn.Release()
	s.conn = nil
	return err
}

// Execute runs one statement. Outside a transaction it commits on its own.
// On failure an open transaction is rolled back and a *StatementError is returned.
func (s *Session) Execute(ctx context.Context, sql string, args ...any) ([]Record, error) {
	if s.inTx && s.tx == nil {
		return nil, ErrTxAborted
	}
	if err := s.Connect(ctx, false); err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var err error
	if s.tx != nil {
		rows, err = s.tx.Query(ctx, sql, args...)
	} else {
		rows, err = s.conn.Query(ctx, sql, args...)
	}
	if err != nil {
		return nil, s.fail(ctx, sql, err)
	}

	records, err := CollectRecords(rows)
	if err != nil {
		return nil, s.fail(ctx, sql, err)
	}

	if s.tx == nil {
		_ = s.Disconnect(ctx, false)
	}
	return records, nil
}

// Transact runs fn inside BEGIN/COMMIT on this session's connection.
// Any error or panic from fn rolls the transaction back.
func (s *Session) Transact(ctx context.Context, fn func(ctx context.Context, tx Executor) error) error {
	if s.inTx {
		return ErrTxInProgress
	}
	if err := s.Connect(ctx, false); err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		stmtErr := &StatementError{SQL: "BEGIN", Err: err}
		_ = s.Disconnect(ctx, false)
		return stmtErr
	}
	s.tx, s.inTx = tx, true

	defer func() {
		if p := recover(); p != nil {
			s.finishTx(ctx)
			panic(p)
		}
	}()

	if err := fn(ctx, s); err != nil {
		s.finishTx(ctx)
		return err
	}

	if s.tx == nil {
		// fn swallowed a failed statement; the transaction is already gone.
		s.finishTx(ctx)
		return ErrTxAborted
	}

	commitErr := s.tx.Commit(ctx)
	s.tx = nil
	s.finishTx(ctx)
	if commitErr != nil {
		return &StatementError{SQL: "COMMIT", Err: commitErr}
	}
	return nil
}

func (s *Session) finishTx(ctx context.Context) {
	if err := s.rollback(ctx); err != nil {
		s.db.logger.WarnContext(ctx, "transaction rollback failed", "error", err)
	}
	s.inTx = false
	_ = s.Disconnect(ctx, false)
}

func (s *Session) fail(ctx context.Context, sql string, err error) error {
	if rbErr := s.rollback(ctx); rbErr != nil {
		s.db.logger.WarnContext(ctx, "rollback after failed statement failed", "error", rbErr)
	}
	if !s.inTx {
		_ = s.Disconnect(ctx, false)
	}
	return &StatementError{SQL: sql, Err: err}
}

// rollback aborts the open transaction, if any. It ignores cancellation of ctx
// so locks are released even when the caller has given up.
func (s *Session) rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}
