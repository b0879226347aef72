package queue

import "errors"

// Common errors
var (
	// ErrRepositoryNil is returned when a nil repository is provided
	ErrRepositoryNil = errors.New("repository cannot be nil")

	// ErrDatabaseNil is returned when the scheduler is built without a database
	ErrDatabaseNil = errors.New("database cannot be nil")

	// ErrEnqueue wraps every failed insert
	ErrEnqueue = errors.New("failed to enqueue task")

	// ErrClaim wraps every failed AcquireNext; an empty queue is not an error
	ErrClaim = errors.New("failed to claim task")

	// ErrTaskNotFound is returned when an update matched no row
	ErrTaskNotFound = errors.New("task not found")

	// ErrModuleRequired is returned when a task is enqueued without module or function
	ErrModuleRequired = errors.New("task module and function are required")

	// ErrPayloadMarshal is returned when params or a result cannot be encoded
	ErrPayloadMarshal = errors.New("failed to marshal payload to JSON")

	// ErrPayloadNil is returned when the typed enqueuer gets a nil payload
	ErrPayloadNil = errors.New("payload cannot be nil")

	// ErrInvalidRetries is returned for a negative retry budget
	ErrInvalidRetries = errors.New("max retries cannot be negative")

	// ErrUnknownField is returned when an update names a column the task table does not have
	ErrUnknownField = errors.New("unknown task field")

	// ErrImmutableField is returned when an update tries to change task_id
	ErrImmutableField = errors.New("task_id cannot be updated")

	// ErrNoFields is returned when an update carries no fields
	ErrNoFields = errors.New("no fields to update")

	// ErrUnsupportedFilter is returned by the memory store for raw SQL filters
	ErrUnsupportedFilter = errors.New("filter is not supported by the memory store")

	// ErrHandlerNotFound is returned when no handler is registered for a task
	ErrHandlerNotFound = errors.New("no handler registered for task")

	// ErrNoHandlers is returned when worker has no handlers registered
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrWorkerStarted is returned by Start on a running worker
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned by Stop on an idle worker
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrInvalidSchedule is returned when schedule format is invalid
	ErrInvalidSchedule = errors.New("invalid schedule format")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when the periodic enqueuer has no tasks
	ErrSchedulerNotConfigured = errors.New("periodic enqueuer has no registered tasks")

	// ErrNotifierNil is returned when a nil redis client is supplied
	ErrNotifierNil = errors.New("redis client cannot be nil")
)
