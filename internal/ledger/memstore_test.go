package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// memStore is an in-memory Store used by tests across the package.
type memStore struct {
	mu       sync.Mutex
	balances map[string]float64
	entries  map[string][]Entry
	// failInsert fails InsertTransaction when set.
	failInsert error
}

func newMemStore(opening float64) *memStore {
	return &memStore{
		balances: map[string]float64{DefaultAccount: opening},
		entries:  map[string][]Entry{},
	}
}

func (m *memStore) AdjustBalance(_ context.Context, account string, delta float64, allowNegative bool) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[account]
	if !ok {
		return 0, fmt.Errorf("ledger: account %q not found", account)
	}
	if !allowNegative && bal+delta < 0 {
		return 0, ErrInsufficientBalance
	}
	m.balances[account] = bal + delta
	return bal + delta, nil
}

func (m *memStore) GetBalance(_ context.Context, account string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[account]
	if !ok {
		return 0, fmt.Errorf("ledger: account %q not found", account)
	}
	return bal, nil
}

func (m *memStore) InsertTransaction(_ context.Context, account string, e Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert != nil {
		return Entry{}, m.failInsert
	}
	m.entries[account] = append(m.entries[account], e)
	return e, nil
}

func (m *memStore) filtered(account string, f Filter) []Entry {
	var out []Entry
	for _, e := range m.entries[account] {
		if f.Direction != "" && e.Direction != f.Direction {
			continue
		}
		if f.Source != "" && e.Source != f.Source {
			continue
		}
		if f.From != nil && e.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !e.CreatedAt.Before(*f.To) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListTransactions(_ context.Context, account string, f Filter, limit, offset int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filtered(account, f)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountTransactions(_ context.Context, account string, f Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filtered(account, f))), nil
}
