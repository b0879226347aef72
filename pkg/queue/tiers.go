package queue

import (
	"time"

	"github.com/dmitrymomot/taskq/pkg/condition"
)

type tierQuery struct {
	tier    Tier
	fields  func(now time.Time) condition.Fields
	orderBy string
}

// tierQueries are tried in this order by AcquireNext.
var tierQueries = []tierQuery{
	{
		tier: TierScheduled,
		fields: func(now time.Time) condition.Fields {
			return condition.Fields{
				ColStatus:               nil,
				"!" + ColScheduledTime:  nil,
				"<=" + ColScheduledTime: now,
			}
		},
		orderBy: "scheduled_time ASC, priority DESC",
	},
	{
		tier: TierRetry,
		fields: func(time.Time) condition.Fields {
			return condition.Fields{
				ColStatus:            string(StatusError),
				"<$" + ColRetryCount: ColMaxRetryCount,
			}
		},
		orderBy: "finished_time ASC, priority DESC",
	},
	{
		tier: TierPlain,
		fields: func(time.Time) condition.Fields {
			return condition.Fields{
				ColStatus:        nil,
				ColScheduledTime: nil,
			}
		},
		orderBy: "priority DESC, task_id ASC",
	},
}
