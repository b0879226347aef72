package pg_test

import (
	"context"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/taskq/pkg/pg"
)

type fakeRows struct {
	pgx.Rows
	columns []string
	data    [][]any
	pos     int
	err     error
	closed  bool
}

func newFakeRows(columns []string, data ...[]any) *fakeRows {
	return &fakeRows{columns: columns, data: data, pos: -1}
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fields := make([]pgconn.FieldDescription, len(r.columns))
	for i, c := range r.columns {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return fields
}

func (r *fakeRows) Next() bool {
	if r.err != nil {
		return false
	}
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos], nil }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 { r.closed = true }

// queryFunc answers a statement with rows or an error.
type queryFunc func(sql string, args []any) (pgx.Rows, error)

// fakeBackend records every statement, transaction boundary and connection
// checkout so tests can assert on the session's lifecycle.
type fakeBackend struct {
	mu        sync.Mutex
	query     queryFunc
	connErr   error
	beginErr  error
	commitErr error
	log       []string
	acquired  int
	released  int
}

func (b *fakeBackend) record(entry string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = append(b.log, entry)
}

func (b *fakeBackend) entries() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.log...)
}

func (b *fakeBackend) open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.acquired - b.released
}

func (b *fakeBackend) Connect(context.Context) (pg.Conn, error) {
	if b.connErr != nil {
		return nil, b.connErr
	}
	b.mu.Lock()
	b.acquired++
	b.mu.Unlock()
	b.record("CONNECT")
	return &fakeConn{backend: b}, nil
}

func (b *fakeBackend) run(sql string, args []any) (pgx.Rows, error) {
	b.record(strings.TrimSpace(sql))
	if b.query == nil {
		return newFakeRows(nil), nil
	}
	return b.query(sql, args)
}

type fakeConn struct {
	backend *fakeBackend
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.backend.run(sql, args)
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	if c.backend.beginErr != nil {
		return nil, c.backend.beginErr
	}
	c.backend.record("BEGIN")
	return &fakeTx{backend: c.backend}, nil
}

func (c *fakeConn) Release() {
	c.backend.mu.Lock()
	c.backend.released++
	c.backend.mu.Unlock()
	c.backend.record("RELEASE")
}

type fakeTx struct {
	pgx.Tx
	backend *fakeBackend
	done    bool
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.backend.run(sql, args)
}

func (t *fakeTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.backend.commitErr != nil {
		return t.backend.commitErr
	}
	t.backend.record("COMMIT")
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.backend.record("ROLLBACK")
	return nil
}
