package admin

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/taskq/pkg/logger"
)

// Check is a named readiness probe such as pg.Healthcheck(pool).
type Check struct {
	Name string
	Fn   func(context.Context) error
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func livenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "alive"})
}

// readinessHandler runs every check and answers 503 if any of them fails.
func readinessHandler(log *slog.Logger, timeout time.Duration, checks []Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp := healthResponse{Status: "ready", Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, c := range checks {
			if err := c.Fn(ctx); err != nil {
				log.ErrorContext(ctx, "readiness check failed",
					slog.String("check", c.Name),
					logger.Error(err))
				resp.Checks[c.Name] = err.Error()
				resp.Status = "not_ready"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[c.Name] = "ok"
		}
		writeJSON(w, code, resp)
	}
}
