package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/events"
)

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: id}, nil
}

func TestTopUpHandler(t *testing.T) {
	emitter := &captureEmitter{}
	h := &Handler{Svc: &Service{Store: newMemStore(0), Now: fixedClock()}, Events: emitter, Currency: "RWF"}

	rr := httptest.NewRecorder()
	h.TopUp(rr, httptest.NewRequest(http.MethodPost, "/api/v1/ledger/topups", strings.NewReader(`{"amount":"25000","reference":"MOMO-77"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var body struct {
		Data Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, 25000.0, body.Data.BalanceAfter)
	require.Equal(t, []string{events.TopicLedgerToppedUp}, emitter.topics)

	rr = httptest.NewRecorder()
	h.Balance(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/balance", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"account":"main","balance":25000,"currency":"RWF"}}`, rr.Body.String())
}

func TestTopUpHandlerRejectsBadAmount(t *testing.T) {
	h := &Handler{Svc: &Service{Store: newMemStore(0)}}
	for _, body := range []string{`{"amount":"abc"}`, `{"amount":-10}`, `{}`} {
		rr := httptest.NewRecorder()
		h.TopUp(rr, httptest.NewRequest(http.MethodPost, "/api/v1/ledger/topups", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
	rr := httptest.NewRecorder()
	h.TopUp(rr, httptest.NewRequest(http.MethodPost, "/api/v1/ledger/topups", strings.NewReader(`{`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTransactionsHandlerValidatesQuery(t *testing.T) {
	h := &Handler{Svc: &Service{Store: newMemStore(0)}}
	rr := httptest.NewRecorder()
	h.Transactions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/transactions?direction=up", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Transactions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/transactions?from=yesterday", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Transactions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ledger/transactions?from=2024-01-01&direction=credit", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "0", rr.Header().Get("X-Total-Count"))
}
