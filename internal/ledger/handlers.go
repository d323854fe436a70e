package ledger

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// Handler exposes the account ledger.
type Handler struct {
	Svc      *Service
	Events   events.Emitter
	Currency string
}

type topUpRequest struct {
	Amount      common.LenientNumber `json:"amount"`
	Reference   string               `json:"reference" validate:"max=120"`
	Description string               `json:"description" validate:"max=500"`
}

// Balance handles GET /api/v1/ledger/balance.
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	balance, err := h.Svc.Balance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"account":  h.Svc.account(),
		"balance":  pricing.Round2(balance),
		"currency": h.Currency,
	}})
}

// Transactions handles GET /api/v1/ledger/transactions.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	q := r.URL.Query()
	var f Filter
	switch d := Direction(strings.ToLower(strings.TrimSpace(q.Get("direction")))); d {
	case "":
	case Credit, Debit:
		f.Direction = d
	default:
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "direction must be credit or debit", nil)
		return
	}
	f.Source = strings.TrimSpace(q.Get("source"))
	var err error
	if f.From, f.To, err = common.ParseDateRange(q.Get("from"), q.Get("to")); err != nil {
		common.WriteError(w, err)
		return
	}
	page := common.ParsePage(r, 20)
	items, total, err := h.Svc.ListTransactions(r.Context(), f, page.Size, page.Offset())
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []Entry{}
	}
	common.List(w, items, page.Meta(total))
}

// TopUp handles POST /api/v1/ledger/topups.
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	var req topUpRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.Validate(req); err != nil {
		common.WriteError(w, err)
		return
	}
	entry, err := h.Svc.TopUp(r.Context(), req.Amount.FloatOr(0), strings.TrimSpace(req.Reference), strings.TrimSpace(req.Description))
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.TopicLedgerToppedUp, entry.ID, map[string]any{
			"amount":       entry.Amount,
			"balanceAfter": entry.BalanceAfter,
			"reference":    entry.Reference,
		})
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": entry})
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
// AppError maps ledger errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return common.Conflict("INSUFFICIENT_BALANCE", "insufficient ledger balance", err)
	case errors.Is(err, ErrInvalidAmount):
		return common.BadRequest("amount must be greater than zero", err)
	}
	return err
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
