package invoice

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/lock"
)

// Handler exposes invoice endpoints.
type Handler struct {
	Svc *Service
}

type invoiceView struct {
	Invoice
	Balance float64 `json:"balance"`
	Overdue bool    `json:"overdue"`
}

func (h *Handler) view(inv Invoice) invoiceView {
	return invoiceView{Invoice: inv, Balance: inv.Balance(), Overdue: inv.Overdue(h.Svc.now())}
}

// List handles GET /api/v1/invoices.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := common.ParsePage(r, 20)
	f := Filter{Query: page.Query}
	if v := q.Get("status"); v != "" {
		st, err := document.ParseInvoiceStatus(v)
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
	if overdue, _ := strconv.ParseBool(q.Get("overdue")); overdue {
		now := h.Svc.now()
		f.OverdueAt = &now
	}
	items, total, err := h.Svc.List(r.Context(), f, page)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]invoiceView, 0, len(items))
	for _, inv := range items {
		out = append(out, h.view(inv))
	}
	common.List(w, out, page.Meta(total))
}

// Get handles GET /api/v1/invoices/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(inv)})
}

// Create handles POST /api/v1/invoices.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	inv, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": h.view(inv)})
}

// ReplaceItems handles PUT /api/v1/invoices/{id}/items.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Items []document.InvoiceLine `json:"items"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	inv, err := h.Svc.ReplaceItems(r.Context(), id, body.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(inv)})
}

// RecordPayment handles POST /api/v1/invoices/{id}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in PaymentInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	inv, err := h.Svc.RecordPayment(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(inv)})
}

// SetPaidAmount handles PUT /api/v1/invoices/{id}/paid-amount.
func (h *Handler) SetPaidAmount(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		PaidAmount common.LenientNumber `json:"paidAmount"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	if !body.PaidAmount.Valid {
		common.WriteError(w, common.BadRequest("paidAmount must be a number", nil))
		return
	}
	inv, err := h.Svc.SetPaidAmount(r.Context(), id, body.PaidAmount.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(inv)})
}

// Payments handles GET /api/v1/invoices/{id}/payments.
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	items, err := h.Svc.Payments(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []Payment{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid invoice id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// AppError maps invoice errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("invoice", err)
	case errors.Is(err, customer.ErrNotFound):
		return common.NewAppError("UNKNOWN_CUSTOMER", "customer does not exist", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrQuotationInvoiced):
		return common.Conflict("QUOTATION_INVOICED", "quotation already has an invoice", err)
	case errors.Is(err, ErrInvalidAmount):
		return common.BadRequest("amount must not be negative", err)
	case errors.Is(err, lock.ErrNotAcquired):
		return common.Conflict("CONCURRENT_UPDATE", "invoice is being updated, retry shortly", err)
	}
	return document.AppError(err)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
