package invoice

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

type invoiceBody struct {
	Data struct {
		ID            string  `json:"id"`
		Number        string  `json:"number"`
		Status        string  `json:"status"`
		TotalIncl     float64 `json:"totalIncl"`
		AmountInWords string  `json:"amountInWords"`
		Balance       float64 `json:"balance"`
		Overdue       bool    `json:"overdue"`
	} `json:"data"`
}

func TestInvoiceHandlersFlow(t *testing.T) {
	f := newFixture(t)
	h := &Handler{Svc: f.svc}

	payload := `{"customerId":"` + f.customer.String() + `","items":[{"description":"120Mbps","quantity":1,"unitPrice":40000}],"term":"30 days"}`
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(payload)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created invoiceBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "unpaid", created.Data.Status)
	require.Equal(t, 40000.0, created.Data.Balance)
	require.Equal(t, "forty thousand", created.Data.AmountInWords)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":10000,"method":"cash"}`))
	h.RecordPayment(rr, withURLParam(req, "id", created.Data.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	var paid invoiceBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &paid))
	require.Equal(t, "partial", paid.Data.Status)
	require.Equal(t, 30000.0, paid.Data.Balance)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"items":[{"description":"x","quantity":1,"unitPrice":1}]}`))
	h.ReplaceItems(rr, withURLParam(req, "id", created.Data.ID))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "DOCUMENT_LOCKED")

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"paidAmount":"40000"}`))
	h.SetPaidAmount(rr, withURLParam(req, "id", created.Data.ID))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"paid"`)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status=paid&customerId="+f.customer.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = httptest.NewRecorder()
	h.Payments(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", created.Data.ID))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestInvoiceHandlerErrors(t *testing.T) {
	f := newFixture(t)
	h := &Handler{Svc: f.svc}

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/invoices?status=bogus", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "nope"))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", f.customer.String()))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{"customerId":"`+f.customer.String()+`","items":[]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices", strings.NewReader(`{"customerId":"9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d","items":[{"description":"x","quantity":1,"unitPrice":5}]}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "UNKNOWN_CUSTOMER")
}
