package proforma

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/lock"
)

// Handler exposes proforma endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/proformas.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := common.ParsePage(r, 20)
	f := Filter{Query: page.Query}
	if v := q.Get("status"); v != "" {
		st, err := document.ParseProformaStatus(v)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Status = st
	}
	if v := q.Get("customerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			common.WriteError(w, common.BadRequest("invalid customerId", err))
			return
		}
		f.CustomerID = &id
	}
	items, total, err := h.Svc.List(r.Context(), f, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []Proforma{}
	}
	common.List(w, items, page.Meta(total))
}

// Get handles GET /api/v1/proformas/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create handles POST /api/v1/proformas.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// ChangeStatus handles PATCH /api/v1/proformas/{id}/status.
func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	next, err := document.ParseProformaStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Svc.ChangeStatus(r.Context(), id, next)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// ReplaceItems handles PUT /api/v1/proformas/{id}/items.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Items []document.ProformaLine `json:"items"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.ReplaceItems(r.Context(), id, body.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Expire handles POST /api/v1/proformas/expire, running the expiry sweep on demand.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.ExpireOverdue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]int{"expired": n}})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid proforma id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// AppError maps proforma errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("proforma", err)
	case errors.Is(err, customer.ErrNotFound):
		return common.NewAppError("UNKNOWN_CUSTOMER", "customer does not exist", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrStatusChanged):
		return common.Conflict("STATUS_CHANGED", "proforma status changed, reload and retry", err)
	case errors.Is(err, lock.ErrNotAcquired):
		return common.Conflict("CONCURRENT_UPDATE", "proforma is being updated, retry shortly", err)
	}
	return document.AppError(err)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
