package schema

import (
	"errors"
	"strings"
)

var (
	ErrNilDatabase      = errors.New("schema: database cannot be nil")
	ErrInvalidTable     = errors.New("schema: invalid table definition")
	ErrIntrospectFailed = errors.New("schema: failed to introspect table")
	ErrApplyFailed      = errors.New("schema: failed to apply changes")
)

// SchemaMismatchError describes drift between a live table and its
// definition. It is informational: dry-run reconciliation reports it
// without failing.
type SchemaMismatchError struct {
	Table   string
	Missing bool
	Changes []Change
}

func (e *SchemaMismatchError) Error() string {
	if e.Missing {
		return "schema: table " + e.Table + " does not exist"
	}
	parts := make([]string, len(e.Changes))
	for i, c := range e.Changes {
		parts[i] = c.String()
	}
	return "schema: table " + e.Table + " drifted: " + strings.Join(parts, "; ")
}
