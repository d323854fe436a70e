package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProductHandlers(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := &Handler{Svc: svc}

	rr := httptest.NewRecorder()
	h.CreateProduct(rr, httptest.NewRequest(http.MethodPost, "/api/v1/products", strings.NewReader(`{"name":"Fibre 10Mbps","category":"internet","unitPrice":11800}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = httptest.NewRecorder()
	h.ListProducts(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=fibre", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = httptest.NewRecorder()
	h.ListProducts(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.GetProduct(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.DeleteProduct(rr, withURLParam(httptest.NewRequest(http.MethodDelete, "/", nil), "id", created.Data.ID.String()))
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.GetProduct(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", created.Data.ID.String()))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAdjustStockHandler(t *testing.T) {
	svc, _ := newTestService(t, false)
	h := &Handler{Svc: svc}

	rr := httptest.NewRecorder()
	h.CreateStock(rr, httptest.NewRequest(http.MethodPost, "/api/v1/stock-items", strings.NewReader(`{"name":"Meter","sku":"MTR-1","quantity":1}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data StockItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"delta":-2,"reason":"sold"}`))
	h.AdjustStock(rr, withURLParam(req, "id", created.Data.ID.String()))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "NEGATIVE_STOCK")

	rr = httptest.NewRecorder()
	h.ListStock(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stock-items?lowStock=2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = httptest.NewRecorder()
	h.CreateStock(rr, httptest.NewRequest(http.MethodPost, "/api/v1/stock-items", strings.NewReader(`{"name":"Meter","sku":"mtr-1"}`)))
	require.Equal(t, http.StatusConflict, rr.Code)
}
