package admin

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrymomot/taskq/pkg/condition"
	"github.com/dmitrymomot/taskq/pkg/queue"
)

// statusPending selects tasks nobody has claimed yet (NULL status).
const statusPending = "pending"

// parseListQuery turns GET /tasks query parameters into a filter and limit.
//
//	status=pending|working|error|done
//	module=, func=, worker_host=         exact match
//	started_before=, scheduled_before=   RFC 3339 upper bounds
//	limit=                               page size
func parseListQuery(q url.Values) (condition.Fields, int, error) {
	filter := condition.Fields{}

	if v := q.Get("status"); v != "" {
		switch v {
		case statusPending:
			filter[queue.ColStatus] = nil
		case string(queue.StatusWorking), string(queue.StatusError), string(queue.StatusDone):
			filter[queue.ColStatus] = v
		default:
			return nil, 0, invalidQuery("status", fmt.Errorf("unknown status %q", v))
		}
	}

	for param, col := range map[string]string{
		"module":      queue.ColModule,
		"func":        queue.ColFunc,
		"worker_host": queue.ColWorkerHost,
	} {
		if v := q.Get(param); v != "" {
			filter[col] = v
		}
	}

	for param, col := range map[string]string{
		"started_before":   queue.ColStartedTime,
		"scheduled_before": queue.ColScheduledTime,
	} {
		v := q.Get(param)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, 0, invalidQuery(param, err)
		}
		filter["<"+col] = ts
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, 0, invalidQuery("limit", fmt.Errorf("%q is not a non-negative integer", v))
		}
		limit = n
	}

	return filter, limit, nil
}

func invalidQuery(param string, err error) error {
	return errors.Join(ErrInvalidQuery, fmt.Errorf("%s: %w", param, err))
}
