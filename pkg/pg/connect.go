package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var isolationLevels = map[string]struct{}{
	"read uncommitted": {},
	"read committed":   {},
	"repeatable read":  {},
	"serializable":     {},
}

// Connect establishes a PostgreSQL connection pool with retry logic.
// Every connection starts in autocommit mode with the configured isolation level,
// and the server-side idle-in-transaction timeout bounds how long a crashed
// client can keep row locks.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrEmptyConnectionString
	}

	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime

	if err := applyRuntimeParams(connConfig, cfg); err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}

	attempts := max(cfg.RetryAttempts, 1)
	var lastErr error
	for i := range attempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			// Ping catches authentication and permission issues that pool creation defers.
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err

		// Linear backoff: attempt 1 waits RetryInterval, attempt 2 waits 2x, and so on.
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToOpenDBConnection, &ConnectionError{Err: ctx.Err()})
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrFailedToOpenDBConnection, &ConnectionError{Err: lastErr})
}

func applyRuntimeParams(connConfig *pgxpool.Config, cfg Config) error {
	params := connConfig.ConnConfig.RuntimeParams
	if level := strings.ToLower(strings.TrimSpace(cfg.IsolationLevel)); level != "" {
		if _, ok := isolationLevels[level]; !ok {
			return fmt.Errorf("unsupported isolation level %q", cfg.IsolationLevel)
		}
		params["default_transaction_isolation"] = level
	}
	if cfg.IdleInTxTimeout > 0 {
		params["idle_in_transaction_session_timeout"] = fmt.Sprintf("%d", cfg.IdleInTxTimeout.Milliseconds())
	}
	return nil
}
