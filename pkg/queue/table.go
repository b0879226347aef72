package queue

import (
	"embed"
	"slices"

	"github.com/dmitrymomot/taskq/pkg/schema"
)

// DefaultTable is the task table name the index migrations are written for.
const DefaultTable = "tasks"

// Migrations holds the goose migrations that create the partial indexes
// backing the three tier queries. Pass it to pg.Migrate with the path "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsPath is the directory inside Migrations.
const MigrationsPath = "migrations"

// Task table columns.
const (
	ColTaskID        = "task_id"
	ColModule        = "module"
	ColFunc          = "func"
	ColParams        = "params"
	ColResult        = "result"
	ColStatus        = "status"
	ColRetryCount    = "retry_count"
	ColMaxRetryCount = "max_retry_count"
	ColScheduledTime = "scheduled_time"
	ColDeferTime     = "defer_time"
	ColCreateTime    = "create_time"
	ColStartedTime   = "started_time"
	ColFinishedTime  = "finished_time"
	ColPriority      = "priority"
	ColWorkerHost    = "worker_host"
	ColParentTaskID  = "parent_task_id"
)

// TaskTable returns the declared shape of the task table for the schema reconciler.
func TaskTable(name string) schema.Table {
	if name == "" {
		name = DefaultTable
	}
	return schema.Table{
		Name: name,
		Columns: []schema.Column{
			{Name: ColTaskID, Type: schema.TypeIdentity},
			{Name: ColModule, Type: schema.TypeString, NotNull: true},
			{Name: ColFunc, Type: schema.TypeString, NotNull: true},
			{Name: ColParams, Type: schema.TypeText},
			{Name: ColResult, Type: schema.TypeText},
			{Name: ColStatus, Type: schema.TypeString, Length: 32},
			{Name: ColRetryCount, Type: schema.TypeInt, NotNull: true, Default: "0"},
			{Name: ColMaxRetryCount, Type: schema.TypeInt, NotNull: true, Default: "0"},
			{Name: ColScheduledTime, Type: schema.TypeTimestamp},
			{Name: ColDeferTime, Type: schema.TypeTimestamp},
			{Name: ColCreateTime, Type: schema.TypeTimestamp},
			{Name: ColStartedTime, Type: schema.TypeTimestamp},
			{Name: ColFinishedTime, Type: schema.TypeTimestamp},
			{Name: ColPriority, Type: schema.TypeInt, NotNull: true, Default: "0"},
			{Name: ColWorkerHost, Type: schema.TypeString},
			{Name: ColParentTaskID, Type: schema.TypeBigInt},
		},
		PrimaryKey: []string{ColTaskID},
	}
}

// taskColumns lists every column in select order.
var taskColumns = []string{
	ColTaskID, ColModule, ColFunc, ColParams, ColResult, ColStatus,
	ColRetryCount, ColMaxRetryCount, ColScheduledTime, ColDeferTime,
	ColCreateTime, ColStartedTime, ColFinishedTime, ColPriority,
	ColWorkerHost, ColParentTaskID,
}

func isTaskColumn(name string) bool {
	return slices.Contains(taskColumns, name)
}
