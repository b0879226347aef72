package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/taskq/pkg/condition"
	"github.com/dmitrymomot/taskq/pkg/logger"
	"github.com/dmitrymomot/taskq/pkg/queue"
)

type handlers struct {
	store   Store
	updater Updater
	logger  *slog.Logger
}

type listResponse struct {
	Tasks []queue.Task `json:"tasks"`
	Count int          `json:"count"`
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	filter, limit, err := parseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), filter, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []queue.Task{}
	}
	writeJSON(w, http.StatusOK, listResponse{Tasks: tasks, Count: len(tasks)})
}

func (h *handlers) getTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	task, err := h.store.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// updateTask applies a JSON object of column values to one task and returns
// the updated row.
func (h *handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskIDParam(w, r)
	if !ok {
		return
	}

	fields, err := decodePatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.updater.UpdateTask(r.Context(), id, fields); err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "task updated from admin",
		logger.TaskID(id),
		slog.Int("fields", len(fields)))

	task, err := h.store.GetTask(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// fail maps store errors to status codes.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrTaskNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, queue.ErrUnknownField),
		errors.Is(err, queue.ErrImmutableField),
		errors.Is(err, queue.ErrUnsupportedFilter),
		errors.Is(err, condition.ErrInvalidField),
		errors.Is(err, condition.ErrInvalidOperator),
		errors.Is(err, condition.ErrNullComparison):
		writeError(w, http.StatusBadRequest, err)
	default:
		h.logger.ErrorContext(r.Context(), "admin request failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func taskIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid task id %q", raw))
		return 0, false
	}
	return id, true
}

// decodePatch reads the PATCH body. Integers stay integers, *_time columns
// accept RFC 3339 strings and the status column accepts "pending" for NULL.
func decodePatch(r *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("empty patch")
	}

	fields := make(map[string]any, len(raw))
	for col, v := range raw {
		switch x := v.(type) {
		case json.Number:
			if n, err := x.Int64(); err == nil {
				fields[col] = n
			} else if f, err := x.Float64(); err == nil {
				fields[col] = f
			} else {
				return nil, fmt.Errorf("%s: %w", col, err)
			}
		case string:
			switch {
			case col == queue.ColStatus && (x == statusPending || x == ""):
				fields[col] = nil
			case strings.HasSuffix(col, "_time"):
				ts, err := time.Parse(time.RFC3339, x)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", col, err)
				}
				fields[col] = ts
			default:
				fields[col] = x
			}
		default:
			fields[col] = v
		}
	}
	return fields, nil
}
