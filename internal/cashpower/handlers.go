package cashpower

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/resilience"
)

// Handler exposes cashpower endpoints.
type Handler struct {
	Svc *Service
}

type sellRequest struct {
	CustomerID  *uuid.UUID           `json:"customerId"`
	MeterNumber string               `json:"meterNumber"`
	Amount      common.LenientNumber `json:"amount"`
}

// Sell handles POST /api/v1/cashpower/transactions.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	t, err := h.Svc.Sell(r.Context(), SellInput{
		CustomerID:  req.CustomerID,
		MeterNumber: req.MeterNumber,
		Amount:      req.Amount.FloatOr(0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": t})
}

// List handles GET /api/v1/cashpower/transactions.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := common.ParsePage(r, 20)
	f := Filter{Meter: strings.TrimSpace(q.Get("meter"))}
	if v := q.Get("customerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			common.WriteError(w, common.BadRequest("invalid customerId", err))
			return
		}
		f.CustomerID = &id
	}
	var err error
	if f.From, f.To, err = common.ParseDateRange(q.Get("from"), q.Get("to")); err != nil {
		common.WriteError(w, err)
		return
	}
	items, total, err := h.Svc.List(r.Context(), f, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []Transaction{}
	}
	common.List(w, items, page.Meta(total))
}

// Get handles GET /api/v1/cashpower/transactions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid transaction id", nil)
		return
	}
	t, err := h.Svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": t})
}

// AppError maps cashpower errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("cashpower transaction", err)
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return common.Conflict("INSUFFICIENT_BALANCE", "account balance is too low for this sale", err)
	case errors.Is(err, ErrVendorRejected), errors.Is(err, resilience.ErrOpenCircuit):
		return common.NewAppError("VENDOR_UNAVAILABLE", "token vendor could not issue a token; the sale was reversed", http.StatusBadGateway, err)
	}
	return err
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
