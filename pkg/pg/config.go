package pg

import "time"

type Config struct {
	ConnectionString  string        `env:"PG_CONN_URL,required"`                   // ConnectionString is the connection string to the database.
	MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`      // MaxOpenConns is the maximum number of open connections to the database.
	MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`       // MaxIdleConns is the number of connections kept open while idle.
	HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`  // HealthCheckPeriod is the period between health checks.
	MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"` // MaxConnIdleTime is the maximum amount of time a connection may be idle to be reused.
	MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`  // MaxConnLifetime is the maximum amount of time a connection may be reused.

	// IsolationLevel is installed as default_transaction_isolation on every connection.
	IsolationLevel string `env:"PG_ISOLATION_LEVEL" envDefault:"read committed"`
	// IdleInTxTimeout makes the server terminate sessions that sit inside an open
	// transaction longer than this, releasing row locks held by a stalled worker. Zero disables it.
	IdleInTxTimeout time.Duration `env:"PG_IDLE_IN_TX_TIMEOUT" envDefault:"1m"`

	RetryAttempts int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`  // RetryAttempts is the number of retry attempts to connect to the database.
	RetryInterval time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"` // RetryInterval is the base interval between retry attempts.

	MigrationsPath  string `env:"PG_MIGRATIONS_PATH" envDefault:"migrations"`               // MigrationsPath is the migrations directory, on disk or inside the supplied fs.FS.
	MigrationsTable string `env:"PG_MIGRATIONS_TABLE" envDefault:"taskq_schema_migrations"` // MigrationsTable is the name of the table used to store the migration version.
}
