package dashboard

import (
	"net/http"

	"github.com/noah-isme/backoffice-api/internal/common"
)

// Handler exposes the dashboard summary.
type Handler struct {
	Svc *Service
}

// Summary handles GET /api/v1/dashboard/summary. Without from/to it covers
// the last ?days days (default 30).
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "DASHBOARD_NOT_CONFIGURED", "dashboard service not configured", nil)
		return
	}
	q := r.URL.Query()
	from, to, err := common.ParseDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	rng := h.Svc.LastDays(common.QueryInt(r, "days", 0))
	if from != nil {
		rng.From = *from
	}
	if to != nil {
		rng.To = *to
	}
	if !rng.From.Before(rng.To) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "from must be before to", nil)
		return
	}
	summary, err := h.Svc.Summary(r.Context(), rng)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}
