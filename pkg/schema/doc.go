// Package schema reconciles live PostgreSQL tables with declared column
// definitions.
//
// A Table lists columns with portable types (string, int, timestamp,
// identity, ...), an optional NOT NULL flag and an optional composite
// primary key. Tables can be built in code or loaded from YAML:
//
//	schema: public
//	name: tasks
//	primary_key: [task_id]
//	columns:
//	  - {name: task_id, type: identity}
//	  - {name: module, type: string, length: 128, not_null: true}
//
// Reconciler.Plan introspects information_schema and reports missing,
// extra and drifted columns (type, varchar length, sequence backing,
// nullability). Reconciler.Reconcile either reports the drift (dry run) or
// applies it with one ALTER TABLE statement per column.
package schema
