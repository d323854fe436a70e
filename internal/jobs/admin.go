package jobs

import (
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/noah-isme/backoffice-api/internal/common"
)

// Inspector is the subset of *asynq.Inspector the admin endpoints use.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListArchivedTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	RunAllArchivedTasks(queue string) (int, error)
	RunTask(queue, id string) error
}

var _ Inspector = (*asynq.Inspector)(nil)

// AdminHandler exposes queue depth and dead-lettered (archived) tasks.
type AdminHandler struct {
	Inspector Inspector
}

type queueView struct {
	Queue     string `json:"queue"`
	Size      int    `json:"size"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
	Processed int    `json:"processedToday"`
	Failed    int    `json:"failedToday"`
	Paused    bool   `json:"paused"`
	LatencyMs int64  `json:"latencyMs"`
}

type taskView struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	Payload      string     `json:"payload,omitempty"`
	Retried      int        `json:"retried"`
	MaxRetry     int        `json:"maxRetry"`
	LastError    string     `json:"lastError,omitempty"`
	LastFailedAt *time.Time `json:"lastFailedAt,omitempty"`
}

type replayRequest struct {
	IDs []string `json:"ids"`
}

// Queues handles GET /api/v1/jobs/queues.
func (h *AdminHandler) Queues(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	names := make([]string, 0, len(Queues()))
	for name := range Queues() {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]queueView, 0, len(names))
	for _, name := range names {
		info, err := h.Inspector.GetQueueInfo(name)
		if errors.Is(err, asynq.ErrQueueNotFound) {
			out = append(out, queueView{Queue: name})
			continue
		}
		if err != nil {
			common.JSONError(w, http.StatusBadGateway, "QUEUE_UNAVAILABLE", "unable to inspect queues", nil)
			return
		}
		out = append(out, queueView{
			Queue:     info.Queue,
			Size:      info.Size,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
			Processed: info.Processed,
			Failed:    info.Failed,
			Paused:    info.Paused,
			LatencyMs: info.Latency.Milliseconds(),
		})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Archived handles GET /api/v1/jobs/queues/{queue}/archived.
func (h *AdminHandler) Archived(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue, ok := knownQueue(w, r)
	if !ok {
		return
	}
	page := common.ParsePage(r, 20)
	tasks, err := h.Inspector.ListArchivedTasks(queue, asynq.PageSize(page.Size), asynq.Page(page.Number))
	if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
		common.JSONError(w, http.StatusBadGateway, "QUEUE_UNAVAILABLE", "unable to list archived tasks", nil)
		return
	}
	out := make([]taskView, 0, len(tasks))
	for _, t := range tasks {
		v := taskView{ID: t.ID, Type: t.Type, Payload: string(t.Payload), Retried: t.Retried, MaxRetry: t.MaxRetry, LastError: t.LastErr}
		if !t.LastFailedAt.IsZero() {
			at := t.LastFailedAt.UTC()
			v.LastFailedAt = &at
		}
		out = append(out, v)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out, "queue": queue})
}

// Replay handles POST /api/v1/jobs/queues/{queue}/archived/replay. With no
// ids every archived task in the queue is moved back to pending.
func (h *AdminHandler) Replay(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	queue, ok := knownQueue(w, r)
	if !ok {
		return
	}
	var req replayRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
			return
		}
	}
	if len(req.IDs) == 0 {
		n, err := h.Inspector.RunAllArchivedTasks(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			common.JSONError(w, http.StatusBadGateway, "QUEUE_UNAVAILABLE", "unable to replay tasks", nil)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{"replayed": n})
		return
	}
	replayed := 0
	failed := map[string]string{}
	for _, id := range req.IDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if err := h.Inspector.RunTask(queue, id); err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) {
				failed[id] = "not found"
			} else {
				failed[id] = err.Error()
			}
			continue
		}
		replayed++
	}
	common.JSON(w, http.StatusOK, map[string]any{"replayed": replayed, "failed": failed})
}

func (h *AdminHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.Inspector == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "task inspector not configured", nil)
		return false
	}
	return true
}

func knownQueue(w http.ResponseWriter, r *http.Request) (string, bool) {
	queue := chi.URLParam(r, "queue")
	if _, ok := Queues()[queue]; !ok {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown queue", nil)
		return "", false
	}
	return queue, true
}
