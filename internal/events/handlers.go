package events

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
)

// Handler exposes the domain event log.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/events?topic=&aggregateId=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "event store not configured", nil)
		return
	}
	var aggregate uuid.UUID
	if raw := strings.TrimSpace(r.URL.Query().Get("aggregateId")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid aggregateId", nil)
			return
		}
		aggregate = parsed
	}
	topic := r.URL.Query().Get("topic")
	page := common.ParsePage(r, 50)
	items, err := h.Store.ListDomainEvents(r.Context(), topic, aggregate, page.Size, page.Offset())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	total, err := h.Store.CountDomainEvents(r.Context(), topic, aggregate)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	if items == nil {
		items = []Event{}
	}
	common.List(w, items, page.Meta(total))
}
