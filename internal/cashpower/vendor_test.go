package cashpower

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/resilience"
)

func TestVendorTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req vendorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.MeterNumber == "00000000000" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(vendorResponse{Token: "1111-2222-3333-4444-5555"})
	}))
	t.Cleanup(srv.Close)

	v := VendorTokens{URL: srv.URL, APIKey: "secret", HTTP: resilience.HTTPClient{Client: srv.Client(), Timeout: time.Second}}
	token, err := v.Token(context.Background(), "04123456789", 25)
	require.NoError(t, err)
	require.Equal(t, "1111-2222-3333-4444-5555", token)

	_, err = v.Token(context.Background(), "00000000000", 25)
	require.ErrorIs(t, err, ErrVendorRejected)
}

func TestSellRefundsWhenVendorRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	svc, store, l := newService(1000)
	svc.Tokens = VendorTokens{URL: srv.URL, HTTP: resilience.HTTPClient{Client: srv.Client()}}
	_, err := svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 500})
	require.ErrorIs(t, err, ErrVendorRejected)
	require.Equal(t, 1000.0, l.balance)
	require.Empty(t, store.rows)
}
