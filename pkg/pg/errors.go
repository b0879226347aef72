package pg

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection = errors.New("failed to open db connection")
	ErrEmptyConnectionString    = errors.New("empty postgres connection string, use PG_CONN_URL env var")
	ErrHealthcheckFailed        = errors.New("healthcheck failed, connection is not available")
	ErrFailedToParseDBConfig    = errors.New("failed to parse db config")
	ErrFailedToApplyMigrations  = errors.New("failed to apply migrations")
	ErrMigrationsDirNotFound    = errors.New("migrations directory not found")
	ErrMigrationPathNotProvided = errors.New("migration path not provided")
	ErrNilConnector             = errors.New("connector cannot be nil")
	ErrTxInProgress             = errors.New("transaction already in progress on this session")
	ErrTxAborted                = errors.New("transaction aborted by a failed statement")
)

// ConnectionError reports that a connection could not be established:
// bad credentials, unreachable host, exhausted pool.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "pg: connect: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StatementError reports a statement that failed after a connection was
// established. The session has already rolled back when it is returned.
type StatementError struct {
	SQL string
	Err error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("pg: statement failed: %s [sql: %s]", driverMessage(e.Err), e.SQL)
}

func (e *StatementError) Unwrap() error { return e.Err }

// Code returns the SQLSTATE reported by the server, or an empty string.
func (e *StatementError) Code() string {
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func driverMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Detail != "" {
			return fmt.Sprintf("%s (SQLSTATE %s): %s", pgErr.Message, pgErr.Code, pgErr.Detail)
		}
		return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return err.Error()
}

// IsConnectionError reports whether err was caused by a failed connect attempt.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsStatementError reports whether err wraps a failed statement.
func IsStatementError(err error) bool {
	var stmtErr *StatementError
	return errors.As(err, &stmtErr)
}

// IsNotFoundError detects pgx.ErrNoRows for consistent "not found" handling across queries.
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows)
}

// IsTxClosedError detects attempts to use closed transactions.
func IsTxClosedError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrTxClosed)
}

// IsDuplicateKeyError detects PostgreSQL unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return hasCode(err, "23505")
}

// IsForeignKeyViolationError detects referential integrity violations (SQLSTATE 23503).
func IsForeignKeyViolationError(err error) bool {
	return hasCode(err, "23503")
}

// IsNotNullViolationError detects inserts that leave a NOT NULL column empty (SQLSTATE 23502).
func IsNotNullViolationError(err error) bool {
	return hasCode(err, "23502")
}

// IsConstraintViolationError matches any integrity constraint violation (SQLSTATE class 23).
func IsConstraintViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "23"
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
