package quotation

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/invoice"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/lock"
)

// Handler exposes quotation endpoints.
type Handler struct {
	Svc *Service
}

// List handles GET /api/v1/quotations.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := common.ParsePage(r, 20)
	f := Filter{Query: page.Query}
	if v := q.Get("status"); v != "" {
		st, err := document.ParseQuotationStatus(v)
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
		items = []Quotation{}
	}
	common.List(w, items, page.Meta(total))
}

// Get handles GET /api/v1/quotations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Create handles POST /api/v1/quotations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": q})
}

// ChangeStatus handles PATCH /api/v1/quotations/{id}/status.
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
	next, err := document.ParseQuotationStatus(body.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := h.Svc.ChangeStatus(r.Context(), id, next)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// ReplaceItems handles PUT /api/v1/quotations/{id}/items.
func (h *Handler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var body struct {
		Items []document.QuotationLine `json:"items"`
	}
	if err := common.DecodeJSON(r, &body); err != nil {
		common.WriteError(w, err)
		return
	}
	q, err := h.Svc.ReplaceItems(r.Context(), id, body.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// Convert handles POST /api/v1/quotations/{id}/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ConvertInput
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &in); err != nil {
			common.WriteError(w, err)
			return
		}
	}
	result, err := h.Svc.Convert(r.Context(), id, in)
	if errors.Is(err, ErrLedgerPosting) {
		appErr := common.NewAppError("LEDGER_POSTING_FAILED", "quotation converted but the ledger posting failed", http.StatusBadGateway, err)
		common.WriteError(w, appErr.WithDetails(map[string]any{
			"invoiceId":     result.Invoice.ID,
			"invoiceNumber": result.Invoice.Number,
		}))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": result})
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid quotation id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// AppError maps quotation errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("quotation", err)
	case errors.Is(err, customer.ErrNotFound):
		return common.NewAppError("UNKNOWN_CUSTOMER", "customer does not exist", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return common.Conflict("INSUFFICIENT_BALANCE", "account balance is too low", err)
	case errors.Is(err, lock.ErrNotAcquired):
		return common.Conflict("CONCURRENT_UPDATE", "quotation is being updated, retry shortly", err)
	}
	return invoice.AppError(err)
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
