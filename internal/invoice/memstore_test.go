package invoice

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/events"
)

type memStore struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]Invoice
	payments map[uuid.UUID][]Payment
}

func newMemStore() *memStore {
	return &memStore{rows: map[uuid.UUID]Invoice{}, payments: map[uuid.UUID][]Payment{}}
}

func (m *memStore) Create(_ context.Context, inv Invoice) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[inv.ID] = inv
	return inv, nil
}

func (m *memStore) FindByQuotation(ctx context.Context, quotationID uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	var id uuid.UUID
	for _, inv := range m.rows {
		if inv.QuotationID != nil && *inv.QuotationID == quotationID {
			id = inv.ID
		}
	}
	m.mu.Unlock()
	if id == uuid.Nil {
		return Invoice{}, ErrNotFound
	}
	return m.Get(ctx, id)
}

func (m *memStore) Get(_ context.Context, id uuid.UUID) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	inv.Items = append([]Item(nil), inv.Items...)
	return inv, nil
}

func (m *memStore) filter(f Filter) []Invoice {
	var out []Invoice
	q := strings.ToLower(f.Query)
	for _, inv := range m.rows {
		if q != "" && !strings.Contains(strings.ToLower(inv.Number+" "+inv.Notes), q) {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		if f.CustomerID != nil && inv.CustomerID != *f.CustomerID {
			continue
		}
		if f.OverdueAt != nil && !inv.Overdue(*f.OverdueAt) {
			continue
		}
		inv.Items = nil
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out
}

func (m *memStore) List(_ context.Context, f Filter, limit, offset int) ([]Invoice, error) {
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

func (m *memStore) ReplaceItems(_ context.Context, inv Invoice) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[inv.ID]; !ok {
		return Invoice{}, ErrNotFound
	}
	m.rows[inv.ID] = inv
	return inv, nil
}

func (m *memStore) SavePayment(_ context.Context, inv Invoice, p *Payment) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[inv.ID]; !ok {
		return Invoice{}, ErrNotFound
	}
	m.rows[inv.ID] = inv
	if p != nil {
		m.payments[inv.ID] = append(m.payments[inv.ID], *p)
	}
	return inv, nil
}

func (m *memStore) ListPayments(_ context.Context, id uuid.UUID) ([]Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Payment(nil), m.payments[id]...), nil
}

type captureEmitter struct {
	mu     sync.Mutex
	topics []string
}

func (c *captureEmitter) Emit(_ context.Context, topic string, id uuid.UUID, _ any) (events.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	return events.Event{Topic: topic, AggregateID: id}, nil
}

type knownCustomers map[uuid.UUID]bool

func (k knownCustomers) Exists(_ context.Context, id uuid.UUID) error {
	if !k[id] {
		return customer.ErrNotFound
	}
	return nil
}
