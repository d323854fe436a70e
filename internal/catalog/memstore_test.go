package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type memStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]Product
	stock     map[uuid.UUID]StockItem
	movements []int
	listCalls int
}

func newMemStore() *memStore {
	return &memStore{products: map[uuid.UUID]Product{}, stock: map[uuid.UUID]StockItem{}}
}

func (m *memStore) filterProducts(p ListParams) []Product {
	var out []Product
	q := strings.ToLower(p.Query)
	for _, item := range m.products {
		if q != "" && !strings.Contains(strings.ToLower(item.Name+" "+item.Description), q) {
			continue
		}
		if p.Category != "" && item.Category != p.Category {
			continue
		}
		if p.Active != nil && item.Active != *p.Active {
			continue
		}
		if p.MinPrice != nil && item.UnitPrice < *p.MinPrice {
			continue
		}
		if p.MaxPrice != nil && item.UnitPrice > *p.MaxPrice {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		switch p.Sort {
		case "price":
			return out[i].UnitPrice < out[j].UnitPrice
		case "-price":
			return out[i].UnitPrice > out[j].UnitPrice
		default:
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
	})
	return out
}

func (m *memStore) ListProducts(_ context.Context, p ListParams) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := m.filterProducts(p)
	off := p.Offset()
	if off >= len(out) {
		return nil, nil
	}
	out = out[off:]
	if len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (m *memStore) CountProducts(_ context.Context, p ListParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filterProducts(p))), nil
}

func (m *memStore) ListCategories(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range m.products {
		if p.Category != "" && !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (m *memStore) CreateProduct(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return p, nil
}

func (m *memStore) UpdateProduct(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return Product{}, ErrNotFound
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *memStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return ErrNotFound
	}
	delete(m.products, id)
	for k, s := range m.stock {
		if s.ProductID != nil && *s.ProductID == id {
			s.ProductID = nil
			m.stock[k] = s
		}
	}
	return nil
}

func (m *memStore) filterStock(f StockFilter) []StockItem {
	var out []StockItem
	q := strings.ToLower(f.Query)
	for _, s := range m.stock {
		if q != "" && !strings.Contains(strings.ToLower(s.Name+" "+s.SKU), q) {
			continue
		}
		if f.ProductID != nil && (s.ProductID == nil || *s.ProductID != *f.ProductID) {
			continue
		}
		if f.Location != "" && s.Location != f.Location {
			continue
		}
		if f.LowStock != nil && s.Quantity > *f.LowStock {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memStore) ListStock(_ context.Context, f StockFilter, limit, offset int) ([]StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.filterStock(f)
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) CountStock(_ context.Context, f StockFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.filterStock(f))), nil
}

func (m *memStore) GetStock(_ context.Context, id uuid.UUID) (StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[id]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	return s, nil
}

func (m *memStore) skuTaken(sku string, except uuid.UUID) bool {
	for id, s := range m.stock {
		if id != except && s.SKU == sku {
			return true
		}
	}
	return false
}

func (m *memStore) CreateStock(_ context.Context, s StockItem) (StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.skuTaken(s.SKU, s.ID) {
		return StockItem{}, ErrDuplicateSKU
	}
	m.stock[s.ID] = s
	return s, nil
}

func (m *memStore) UpdateStock(_ context.Context, s StockItem) (StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[s.ID]; !ok {
		return StockItem{}, ErrNotFound
	}
	if m.skuTaken(s.SKU, s.ID) {
		return StockItem{}, ErrDuplicateSKU
	}
	m.stock[s.ID] = s
	return s, nil
}

func (m *memStore) DeleteStock(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stock[id]; !ok {
		return ErrNotFound
	}
	delete(m.stock, id)
	return nil
}

func (m *memStore) AdjustStock(_ context.Context, id uuid.UUID, delta int, _ string) (StockItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stock[id]
	if !ok {
		return StockItem{}, ErrNotFound
	}
	if s.Quantity+delta < 0 {
		return StockItem{}, ErrNegativeStock
	}
	s.Quantity += delta
	m.stock[id] = s
	m.movements = append(m.movements, delta)
	return s, nil
}
