package cashpower

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/ledger"
)

type memStore struct {
	mu   sync.Mutex
	rows []Transaction
	fail error
}

func (m *memStore) Create(_ context.Context, t Transaction) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return Transaction{}, m.fail
	}
	m.rows = append(m.rows, t)
	return t, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.ID == id {
			return t, nil
		}
	}
	return Transaction{}, ErrNotFound
}

func (m *memStore) match(f Filter) []Transaction {
	var out []Transaction
	for _, t := range m.rows {
		if f.Meter != "" && t.MeterNumber != f.Meter {
			continue
		}
		if f.From != nil && t.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !t.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (m *memStore) List(_ context.Context, f Filter, limit, offset int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.match(f)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.match(f))), nil
}

// fakeLedger mirrors ledger.Service: debits that would overdraw are refused.
type fakeLedger struct {
	balance float64
	entries []ledger.Entry
	// failRecord fails RecordTransaction; failCredit fails positive UpdateBalance calls.
	failRecord error
	failCredit error
}

func (l *fakeLedger) UpdateBalance(_ context.Context, amount float64) (float64, error) {
	if amount > 0 && l.failCredit != nil {
		return 0, l.failCredit
	}
	if l.balance+amount < 0 {
		return 0, ledger.ErrInsufficientBalance
	}
	l.balance += amount
	return l.balance, nil
}

func (l *fakeLedger) RecordTransaction(_ context.Context, e ledger.Entry) (ledger.Entry, error) {
	if l.failRecord != nil {
		return ledger.Entry{}, l.failRecord
	}
	l.entries = append(l.entries, e)
	return e, nil
}

func newService(balance float64) (*Service, *memStore, *fakeLedger) {
	store := &memStore{}
	l := &fakeLedger{balance: balance}
	return &Service{
		Store:  store,
		Ledger: l,
		Tariff: 200,
		Now:    func() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC) },
	}, store, l
}

func TestSellDebitsLedger(t *testing.T) {
	svc, store, l := newService(10000)
	tx, err := svc.Sell(context.Background(), SellInput{MeterNumber: " 04123456789 ", Amount: 5000})
	require.NoError(t, err)
	require.Equal(t, "04123456789", tx.MeterNumber)
	require.Equal(t, 25.0, tx.Units)
	require.Equal(t, StatusCompleted, tx.Status)
	require.Regexp(t, regexp.MustCompile(`^\d{4}(-\d{4}){4}$`), tx.Token)

	require.Equal(t, 5000.0, l.balance)
	require.Len(t, l.entries, 1)
	require.Equal(t, ledger.Debit, l.entries[0].Direction)
	require.Equal(t, 5000.0, l.entries[0].BalanceAfter)
	require.Equal(t, "cashpower", l.entries[0].Source)
	require.Len(t, store.rows, 1)
}

func TestSellValidation(t *testing.T) {
	svc, store, l := newService(10000)
	ctx := context.Background()
	for _, meter := range []string{"", "1234567890", "12345678901234", "0412345678x", "+4123456789"} {
		_, err := svc.Sell(ctx, SellInput{MeterNumber: meter, Amount: 100})
		require.ErrorIs(t, err, common.ErrValidation, meter)
	}
	_, err := svc.Sell(ctx, SellInput{MeterNumber: "0412345678901", Amount: 0})
	require.ErrorIs(t, err, common.ErrValidation)
	require.Empty(t, store.rows)
	require.Equal(t, 10000.0, l.balance)
}

func TestSellInsufficientBalance(t *testing.T) {
	svc, store, l := newService(1000)
	_, err := svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 1000.01})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	require.Empty(t, store.rows)
	require.Empty(t, l.entries)
	require.Equal(t, 1000.0, l.balance)
}

func TestSellRefundsWhenStoreFails(t *testing.T) {
	svc, store, l := newService(1000)
	store.fail = errors.New("insert failed")
	_, err := svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 400})
	require.Error(t, err)
	require.Equal(t, 1000.0, l.balance)
	require.Len(t, l.entries, 2)
	require.Equal(t, ledger.Debit, l.entries[0].Direction)
	require.Equal(t, ledger.Credit, l.entries[1].Direction)
	require.Equal(t, 1000.0, l.entries[1].BalanceAfter)

	store.fail = nil
	svc.Tokens = TokenFunc(func(context.Context, string, float64) (string, error) { return "", errors.New("vendor offline") })
	_, err = svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 400})
	require.Error(t, err)
	require.Equal(t, 1000.0, l.balance)
}

func TestSellFailsWhenLedgerEntryCannotBeRecorded(t *testing.T) {
	svc, store, l := newService(10000)
	l.failRecord = errors.New("ledger log down")
	issued := 0
	svc.Tokens = TokenFunc(func(context.Context, string, float64) (string, error) {
		issued++
		return "1111-2222-3333-4444-5555", nil
	})

	_, err := svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 5000})
	require.ErrorContains(t, err, "ledger log down")
	require.Zero(t, issued)
	require.Empty(t, store.rows)
	require.Empty(t, l.entries)
	require.Equal(t, 10000.0, l.balance)
}

func TestSellReportsFailedReversal(t *testing.T) {
	svc, store, l := newService(1000)
	store.fail = errors.New("insert failed")
	l.failCredit = errors.New("ledger down")

	_, err := svc.Sell(context.Background(), SellInput{MeterNumber: "04123456789", Amount: 400})
	require.ErrorIs(t, err, ErrReversalFailed)
	require.ErrorContains(t, err, "insert failed")
	require.ErrorContains(t, err, "ledger down")
	require.Equal(t, 600.0, l.balance)
	require.Len(t, l.entries, 1)
}

func TestHandlers(t *testing.T) {
	svc, _, _ := newService(500)
	h := &Handler{Svc: svc}

	rr := httptest.NewRecorder()
	h.Sell(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cashpower/transactions", strings.NewReader(`{"meterNumber":"04123456789","amount":"200"}`)))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	h.Sell(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cashpower/transactions", strings.NewReader(`{"meterNumber":"04123456789","amount":400}`)))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INSUFFICIENT_BALANCE")

	rr = httptest.NewRecorder()
	h.Sell(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cashpower/transactions", strings.NewReader(`{"meterNumber":"123","amount":10}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "meterNumber")

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cashpower/transactions?meter=04123456789&from=2024-07-01&to=2024-07-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cashpower/transactions?from=nope", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerVendorFailure(t *testing.T) {
	svc, _, l := newService(1000)
	svc.Tokens = TokenFunc(func(context.Context, string, float64) (string, error) { return "", ErrVendorRejected })
	rr := httptest.NewRecorder()
	(&Handler{Svc: svc}).Sell(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cashpower/transactions", strings.NewReader(`{"meterNumber":"04123456789","amount":100}`)))
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Contains(t, rr.Body.String(), "VENDOR_UNAVAILABLE")
	require.Equal(t, 1000.0, l.balance)
}
