package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
)

// Handler exposes product and stock endpoints.
type Handler struct {
	Svc *Service
}

// ListProducts handles GET /api/v1/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	params, err := h.Svc.ParseListParams(r.URL.Query())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Svc.ListProducts(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}
	common.List(w, result.Items, common.Pagination{Page: result.Page, PerPage: result.Limit, TotalItems: int(result.Total)})
}

// ListCategories handles GET /api/v1/products/categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Svc.ListCategories(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cats})
}

// GetProduct handles GET /api/v1/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "product")
	if !ok {
		return
	}
	p, err := h.Svc.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// CreateProduct handles POST /api/v1/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// UpdateProduct handles PUT /api/v1/products/{id}.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "product")
	if !ok {
		return
	}
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.Svc.UpdateProduct(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// DeleteProduct handles DELETE /api/v1/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "product")
	if !ok {
		return
	}
	if err := h.Svc.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStock handles GET /api/v1/stock-items.
func (h *Handler) ListStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := common.ParsePage(r, 20)
	filter := StockFilter{Query: page.Query, Location: strings.TrimSpace(q.Get("location"))}
	if v := q.Get("productId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			common.WriteError(w, badRequest("productId", "invalid product id", err))
			return
		}
		filter.ProductID = &id
	}
	if v := q.Get("lowStock"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			common.WriteError(w, badRequest("lowStock", "lowStock must be a non-negative integer", err))
			return
		}
		filter.LowStock = &n
	}
	items, total, err := h.Svc.ListStock(r.Context(), filter, page)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []StockItem{}
	}
	common.List(w, items, page.Meta(total))
}

// GetStock handles GET /api/v1/stock-items/{id}.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "stock item")
	if !ok {
		return
	}
	item, err := h.Svc.GetStock(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item, "value": item.Value()})
}

// CreateStock handles POST /api/v1/stock-items.
func (h *Handler) CreateStock(w http.ResponseWriter, r *http.Request) {
	var in StockInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.Svc.CreateStock(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": item})
}

// UpdateStock handles PUT /api/v1/stock-items/{id}.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "stock item")
	if !ok {
		return
	}
	var in StockInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.Svc.UpdateStock(r.Context(), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

// DeleteStock handles DELETE /api/v1/stock-items/{id}.
func (h *Handler) DeleteStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "stock item")
	if !ok {
		return
	}
	if err := h.Svc.DeleteStock(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles POST /api/v1/stock-items/{id}/adjust.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "stock item")
	if !ok {
		return
	}
	var adj Adjustment
	if err := common.DecodeJSON(r, &adj); err != nil {
		common.WriteError(w, err)
		return
	}
	item, err := h.Svc.AdjustStock(r.Context(), id, adj)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": item})
}

func parseID(w http.ResponseWriter, r *http.Request, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+resource+" id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// AppError maps catalog errors onto HTTP errors.
func AppError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("catalog item", err)
	case errors.Is(err, ErrDuplicateSKU):
		return common.Conflict("DUPLICATE_SKU", "sku already exists", err)
	case errors.Is(err, ErrNegativeStock):
		return common.Conflict("NEGATIVE_STOCK", "adjustment would take stock below zero", err)
	}
	return err
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, AppError(err))
}
