// Package condition translates a flat map of field specifiers into a
// parameterized SQL predicate.
//
// It deliberately stops short of an expression tree: every key of a Fields map
// becomes exactly one predicate and all predicates are joined with AND. The
// operator is encoded as a prefix of the key, the column name follows:
//
//	condition.Fields{
//	    "status":           nil,            // status IS NULL
//	    "priority":         []int{3, 4, 5}, // priority IN (3,4,5)
//	    ">=create_time":    since,          // create_time >= @create_time
//	    "!worker_host":     "",             // worker_host != @worker_host
//	    "~module":          "billing.%",    // module LIKE @module
//	    "*result":          "timeout",      // position(@result in result) > 0
//	    "<$retry_count":    "max_retry_count",
//	    "module|func":      "cleanup",      // (module = @module OR func = @func)
//	}
//
// Operator characters are drawn from < > ! @ $ = ~ *. The $ marker makes the
// value raw SQL and @ is a raw IN list; both are interpolated as-is and must
// never carry user input. Slices are rendered as quoted IN lists. Everything
// else is bound as a named parameter, and the parameter map is a pgx.NamedArgs
// so a Condition can be handed to pgx directly:
//
//	cond, err := condition.Build(fields)
//	if err != nil {
//	    return err
//	}
//	rows, err := conn.Query(ctx, "SELECT * FROM tasks"+cond.Where(), cond.Params)
//
// # Error Handling
//
// Invalid keys return ErrInvalidField or ErrInvalidOperator, ordered
// comparisons against nil return ErrNullComparison. All errors are joined with
// the offending key so they can be checked with errors.Is.
package condition
