package proforma

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/events"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]Proforma
	// beforeWrite runs ahead of ReplaceItems and UpdateStatus to interleave a concurrent writer.
	beforeWrite func()
}

func (m *memStore) Create(_ context.Context, p Proforma) (Proforma, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.ID] = p
	return p, nil
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Proforma, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return Proforma{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) filter(f Filter) []Proforma {
	var out []Proforma
	for _, p := range m.rows {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.CustomerID != nil && p.CustomerID != *f.CustomerID {
			continue
		}
		if f.Query != "" && !strings.Contains(strings.ToLower(p.Number), strings.ToLower(f.Query)) {
			continue
		}
		p.Items = nil
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

func (m *memStore) List(_ context.Context, f Filter, limit, offset int) ([]Proforma, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filter(f)
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
	return int64(len(m.filter(f))), nil
}

func (m *memStore) save(p Proforma, expect document.ProformaStatus) (Proforma, error) {
	if m.beforeWrite != nil {
		m.beforeWrite()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.ID]
	if !ok {
		return Proforma{}, ErrNotFound
	}
	if cur.Status != expect {
		return Proforma{}, ErrStatusChanged
	}
	m.rows[p.ID] = p
	return p, nil
}

func (m *memStore) ReplaceItems(_ context.Context, p Proforma) (Proforma, error) {
	return m.save(p, p.Status)
}

func (m *memStore) UpdateStatus(_ context.Context, p Proforma, from document.ProformaStatus) (Proforma, error) {
	return m.save(p, from)
}

func (m *memStore) ExpireBefore(_ context.Context, now time.Time) ([]Proforma, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Proforma
	for id, p := range m.rows {
		if p.Status.Expirable() && p.ExpiresAt.Before(now) {
			p.Status = document.ProformaExpired
			p.UpdatedAt = now
			m.rows[id] = p
			out = append(out, p)
		}
	}
	return out, nil
}

type captureEmitter struct {
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: id}, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService() (*Service, *memStore, *clock, *captureEmitter) {
	store := &memStore{rows: map[uuid.UUID]Proforma{}}
	c := &clock{t: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
	em := &captureEmitter{}
	svc := &Service{
		Store:   store,
		Numbers: &document.LocalSequencer{},
		Events:  em,
		VATRate: 0.18,
		Now:     c.now,
	}
	return svc, store, c, em
}

func create(t *testing.T, svc *Service, validity string) Proforma {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateInput{
		CustomerID: uuid.New(),
		Validity:   validity,
		Items: []document.ProformaLine{
			{Description: "10Mbps", Quantity: 1, UnitPrice: 11800, DiscountPercent: 10},
		},
	})
	require.NoError(t, err)
	return p
}

func TestCreateUsesDiscountFirst(t *testing.T) {
	svc, _, c, em := newService()
	p := create(t, svc, "")

	require.Equal(t, "PRO-2024-0001", p.Number)
	require.Equal(t, document.ProformaPending, p.Status)
	require.Equal(t, 9000.0, p.TotalExcl)
	require.Equal(t, 1620.0, p.Tax)
	require.Equal(t, 10620.0, p.TotalIncl)
	require.Equal(t, 1180.0, p.TotalDiscount)
	require.Equal(t, "ten thousand six hundred twenty", p.AmountInWords)
	require.Equal(t, c.t.AddDate(0, 0, 15), p.ExpiresAt)
	require.Equal(t, []string{events.TopicProformaCreated}, em.topics)

	p = create(t, svc, "1 month")
	require.Equal(t, c.t.AddDate(0, 1, 0), p.ExpiresAt)
}

func TestChangeStatusFollowsStateMachine(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()
	p := create(t, svc, "")

	p, err := svc.ChangeStatus(ctx, p.ID, document.ProformaSent)
	require.NoError(t, err)
	require.Equal(t, document.ProformaSent, p.Status)

	_, err = svc.ChangeStatus(ctx, p.ID, document.ProformaPending)
	require.ErrorIs(t, err, document.ErrInvalidTransition)

	p, err = svc.ChangeStatus(ctx, p.ID, document.ProformaPaid)
	require.NoError(t, err)
	_, err = svc.ReplaceItems(ctx, p.ID, []document.ProformaLine{{Description: "x", Quantity: 1, UnitPrice: 1}})
	require.ErrorIs(t, err, document.ErrDocumentLocked)
	_, err = svc.ChangeStatus(ctx, p.ID, document.ProformaCancelled)
	require.ErrorIs(t, err, document.ErrInvalidTransition)

	_, err = svc.ChangeStatus(ctx, uuid.New(), document.ProformaSent)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestExpireOverdueAndRenew(t *testing.T) {
	svc, store, c, em := newService()
	ctx := context.Background()
	stale := create(t, svc, "3 days")
	fresh := create(t, svc, "30 days")
	paid := create(t, svc, "1 day")
	_, err := svc.ChangeStatus(ctx, paid.ID, document.ProformaPaid)
	require.NoError(t, err)

	c.t = c.t.AddDate(0, 0, 7)
	n, err := svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, document.ProformaExpired, store.rows[stale.ID].Status)
	require.Equal(t, document.ProformaPending, store.rows[fresh.ID].Status)
	require.Equal(t, document.ProformaPaid, store.rows[paid.ID].Status)
	require.Contains(t, em.topics, events.TopicProformaStatusChanged)

	renewed, err := svc.ChangeStatus(ctx, stale.ID, document.ProformaPending)
	require.NoError(t, err)
	require.Equal(t, c.t.AddDate(0, 0, 15), renewed.ExpiresAt)

	n, err = svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestChangeStatusLosesToConcurrentExpiry(t *testing.T) {
	svc, store, c, em := newService()
	ctx := context.Background()
	p := create(t, svc, "3 days")
	c.t = c.t.AddDate(0, 0, 7)

	store.beforeWrite = func() {
		store.beforeWrite = nil
		n, err := svc.ExpireOverdue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
	_, err := svc.ChangeStatus(ctx, p.ID, document.ProformaPaid)
	require.ErrorIs(t, err, ErrStatusChanged)
	require.Equal(t, document.ProformaExpired, store.rows[p.ID].Status)
	require.Equal(t, []string{events.TopicProformaCreated, events.TopicProformaStatusChanged}, em.topics)

	store.beforeWrite = func() {
		store.beforeWrite = nil
		_, _ = svc.ExpireOverdue(ctx)
	}
	_, err = svc.ChangeStatus(ctx, p.ID, document.ProformaPending)
	require.NoError(t, err)
	_, err = svc.ReplaceItems(ctx, p.ID, []document.ProformaLine{{Description: "x", Quantity: 1, UnitPrice: 1}})
	require.NoError(t, err)
}

func TestReplaceItemsReprices(t *testing.T) {
	svc, _, _, _ := newService()
	p := create(t, svc, "")
	p, err := svc.ReplaceItems(context.Background(), p.ID, []document.ProformaLine{
		{Description: "router", Quantity: 2, UnitPrice: 5900},
	})
	require.NoError(t, err)
	require.Equal(t, 11800.0, p.TotalIncl)
	require.Zero(t, p.TotalDiscount)
	require.Len(t, p.Items, 1)

	_, err = svc.ReplaceItems(context.Background(), p.ID, []document.ProformaLine{{Description: "x", Quantity: 1, UnitPrice: 1, DiscountPercent: 120}})
	require.ErrorIs(t, err, common.ErrValidation)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlers(t *testing.T) {
	svc, _, _, _ := newService()
	h := &Handler{Svc: svc}

	rr := httptest.NewRecorder()
	body := `{"customerId":"` + uuid.NewString() + `","items":[{"description":"fibre","quantity":1,"unitPrice":40000,"discountPercent":5}]}`
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/v1/proformas", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created struct {
		Data Proforma `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, 38000.0, created.Data.TotalIncl)

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"cancelled"}`))
	h.ChangeStatus(rr, withURLParam(req, "id", created.Data.ID.String()))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"sent"}`))
	h.ChangeStatus(rr, withURLParam(req, "id", created.Data.ID.String()))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_TRANSITION")

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"archived"}`))
	h.ChangeStatus(rr, withURLParam(req, "id", created.Data.ID.String()))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/proformas?status=cancelled", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "1", rr.Header().Get("X-Total-Count"))

	rr = httptest.NewRecorder()
	h.Expire(rr, httptest.NewRequest(http.MethodPost, "/api/v1/proformas/expire", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"data":{"expired":0}}`, rr.Body.String())
}
