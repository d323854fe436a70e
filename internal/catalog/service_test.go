package catalog

import (
	"context"
	"net/url"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/cache"
	"github.com/noah-isme/backoffice-api/internal/common"
)

func newTestService(t *testing.T, withCache bool) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	cfg := ServiceConfig{Store: store, Now: func() time.Time { return time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC) }}
	if withCache {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		cfg.Cache = cache.New(client, time.Minute, "test:")
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc, store
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}

func TestParseListParams(t *testing.T) {
	svc, _ := newTestService(t, false)

	p, err := svc.ParseListParams(url.Values{"q": {" fibre "}, "limit": {"500"}, "sort": {"-price"}, "active": {"true"}})
	require.NoError(t, err)
	require.Equal(t, "fibre", p.Query)
	require.Equal(t, 100, p.Limit)
	require.Equal(t, "-price", p.Sort)
	require.True(t, *p.Active)

	p, err = svc.ParseListParams(url.Values{"sort": {"bogus"}})
	require.NoError(t, err)
	require.Equal(t, "name", p.Sort)
	require.Equal(t, 20, p.Limit)

	_, err = svc.ParseListParams(url.Values{"page": {"0"}})
	require.Error(t, err)
	_, err = svc.ParseListParams(url.Values{"minPrice": {"10"}, "maxPrice": {"5"}})
	require.Error(t, err)
	_, err = svc.ParseListParams(url.Values{"active": {"maybe"}})
	require.Error(t, err)
}

func TestProductListingIsCachedUntilWrite(t *testing.T) {
	svc, store := newTestService(t, true)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, ProductInput{Name: "Fibre 20Mbps", Category: "internet", UnitPrice: 25000})
	require.NoError(t, err)

	params := ListParams{Page: 1, Limit: 20, Sort: "name"}
	first, err := svc.ListProducts(ctx, params)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)
	_, err = svc.ListProducts(ctx, params)
	require.NoError(t, err)
	require.Equal(t, 1, store.listCalls)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "Fibre 120Mbps", Category: "internet", UnitPrice: 40000})
	require.NoError(t, err)
	second, err := svc.ListProducts(ctx, params)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	require.EqualValues(t, 2, second.Total)
	require.Equal(t, 2, store.listCalls)

	cats, err := svc.ListCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"internet"}, cats)
}

func TestProductDefaultsAndValidation(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Name: " Router ", UnitPrice: 12499.999})
	require.NoError(t, err)
	require.Equal(t, "Router", p.Name)
	require.True(t, p.Active)
	require.Equal(t, 12500.0, p.UnitPrice)

	off := false
	p, err = svc.UpdateProduct(ctx, p.ID, ProductInput{Name: "Router AX", UnitPrice: 15000, Active: &off})
	require.NoError(t, err)
	require.False(t, p.Active)

	_, err = svc.CreateProduct(ctx, ProductInput{Name: "bad", UnitPrice: -1})
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = svc.UpdateProduct(ctx, uuid.New(), ProductInput{Name: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStockAdjustNeverGoesNegative(t *testing.T) {
	svc, store := newTestService(t, false)
	ctx := context.Background()

	item, err := svc.CreateStock(ctx, StockInput{Name: "ONT", SKU: " ont-01 ", Quantity: 5, UnitCost: 30000})
	require.NoError(t, err)
	require.Equal(t, "ONT-01", item.SKU)
	require.Equal(t, 150000.0, item.Value())

	item, err = svc.AdjustStock(ctx, item.ID, Adjustment{Delta: -3, Reason: "installed"})
	require.NoError(t, err)
	require.Equal(t, 2, item.Quantity)

	_, err = svc.AdjustStock(ctx, item.ID, Adjustment{Delta: -3})
	require.ErrorIs(t, err, ErrNegativeStock)
	_, err = svc.AdjustStock(ctx, item.ID, Adjustment{Delta: 0})
	require.ErrorIs(t, err, common.ErrValidation)
	require.Equal(t, []int{-3}, store.movements)

	_, err = svc.CreateStock(ctx, StockInput{Name: "ONT spare", SKU: "ONT-01"})
	require.ErrorIs(t, err, ErrDuplicateSKU)

	missing := uuid.New()
	_, err = svc.CreateStock(ctx, StockInput{Name: "cable", SKU: "CBL", ProductID: &missing})
	require.ErrorIs(t, err, ErrNotFound)
}
