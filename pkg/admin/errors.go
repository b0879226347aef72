package admin

import "errors"

var (
	// ErrStart indicates that the server failed to start.
	ErrStart = errors.New("failed to start admin server")
	// ErrShutdown indicates that graceful shutdown failed.
	ErrShutdown = errors.New("failed to shutdown admin server gracefully")
	// ErrAlreadyRunning is returned by a second Run on the same Server.
	ErrAlreadyRunning = errors.New("admin server already running")
	// ErrStoreNil is returned by NewRouter without a task store.
	ErrStoreNil = errors.New("task store is nil")
	// ErrStoreNotWritable is returned when task updates are enabled for a
	// store without UpdateTask.
	ErrStoreNotWritable = errors.New("task store does not support updates")
	// ErrInvalidQuery is returned for malformed list query parameters.
	ErrInvalidQuery = errors.New("invalid query parameter")
)
