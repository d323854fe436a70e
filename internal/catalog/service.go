package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/cache"
	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown products or stock items.
	ErrNotFound = errors.New("catalog: not found")
	// ErrDuplicateSKU is returned when a stock item SKU is already taken.
	ErrDuplicateSKU = errors.New("catalog: duplicate sku")
	// ErrNegativeStock is returned when an adjustment would take quantity below zero.
	ErrNegativeStock = errors.New("catalog: stock cannot go below zero")
)

// Product is a sellable service or good. UnitPrice is VAT-inclusive.
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	UnitPrice   float64   `json:"unitPrice"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductInput is the writable part of a product.
type ProductInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Category    string  `json:"category" validate:"max=100"`
	Description string  `json:"description" validate:"max=2000"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	Active      *bool   `json:"active"`
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Active   *bool
	MinPrice *float64
	MaxPrice *float64
	Sort     string
	Page     int
	Limit    int
}

// Offset returns the row offset for the page.
func (p ListParams) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// ProductListResult is a page of products.
type ProductListResult struct {
	Items []Product `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

// Store persists products and stock.
type Store interface {
	ListProducts(ctx context.Context, p ListParams) ([]Product, error)
	CountProducts(ctx context.Context, p ListParams) (int64, error)
	ListCategories(ctx context.Context) ([]string, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	ListStock(ctx context.Context, f StockFilter, limit, offset int) ([]StockItem, error)
	CountStock(ctx context.Context, f StockFilter) (int64, error)
	GetStock(ctx context.Context, id uuid.UUID) (StockItem, error)
	CreateStock(ctx context.Context, s StockItem) (StockItem, error)
	UpdateStock(ctx context.Context, s StockItem) (StockItem, error)
	DeleteStock(ctx context.Context, id uuid.UUID) error
	AdjustStock(ctx context.Context, id uuid.UUID, delta int, reason string) (StockItem, error)
}

// Service orchestrates catalog queries, validation and caching.
type Service struct {
	store        Store
	cache        *cache.JSON
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *cache.JSON
	DefaultLimit int
	MaxLimit     int
	Now          func() time.Time
}

// NewService validates configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit, now: cfg.Now}, nil
}

// ParseListParams reads q, category, active, minPrice, maxPrice, sort, page and limit.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{Page: 1, Limit: s.defaultLimit}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil || l < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = min(l, s.maxLimit)
	}
	for name, dst := range map[string]**float64{"minPrice": &params.MinPrice, "maxPrice": &params.MaxPrice} {
		if v := strings.TrimSpace(values.Get(name)); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil || parsed < 0 {
				return params, badRequest(name, name+" must be a non-negative number", err)
			}
			*dst = &parsed
		}
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", fmt.Errorf("invalid price range"))
	}
	if v := strings.TrimSpace(values.Get("active")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("active", "active must be true or false", err)
		}
		params.Active = &b
	}
	params.Sort = normalizeSort(values.Get("sort"))
	return params, nil
}

// ListProducts returns a page of products, served from cache when possible.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ProductListResult, error) {
	return cache.Remember(ctx, s.cache, cache.NSProducts, listCacheKey(params), func(ctx context.Context) (ProductListResult, error) {
		total, err := s.store.CountProducts(ctx, params)
		if err != nil {
			return ProductListResult{}, fmt.Errorf("count products: %w", err)
		}
		items, err := s.store.ListProducts(ctx, params)
		if err != nil {
			return ProductListResult{}, fmt.Errorf("list products: %w", err)
		}
		if items == nil {
			items = []Product{}
		}
		return ProductListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
	})
}

// ListCategories returns distinct product categories.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	return cache.Remember(ctx, s.cache, cache.NSProducts, "categories", s.store.ListCategories)
}

// GetProduct loads one product.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

// CreateProduct validates and stores a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in = normaliseProduct(in)
	if err := common.Validate(in); err != nil {
		return Product{}, err
	}
	now := s.now().UTC()
	p := Product{
		ID:          uuid.New(),
		Name:        in.Name,
		Category:    in.Category,
		Description: in.Description,
		UnitPrice:   pricing.Round2(in.UnitPrice),
		Active:      in.Active == nil || *in.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	out, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// UpdateProduct replaces the writable fields of a product.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (Product, error) {
	in = normaliseProduct(in)
	if err := common.Validate(in); err != nil {
		return Product{}, err
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.Name = in.Name
	p.Category = in.Category
	p.Description = in.Description
	p.UnitPrice = pricing.Round2(in.UnitPrice)
	if in.Active != nil {
		p.Active = *in.Active
	}
	p.UpdatedAt = s.now().UTC()
	out, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return out, nil
}

// DeleteProduct removes a product. Stock items keep their rows with no product.
func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cache.NSProducts)
}

func normaliseProduct(in ProductInput) ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func listCacheKey(p ListParams) string {
	v := url.Values{}
	v.Set("q", strings.ToLower(p.Query))
	v.Set("category", p.Category)
	v.Set("sort", p.Sort)
	v.Set("page", strconv.Itoa(p.Page))
	v.Set("limit", strconv.Itoa(p.Limit))
	if p.Active != nil {
		v.Set("active", strconv.FormatBool(*p.Active))
	}
	if p.MinPrice != nil {
		v.Set("min", strconv.FormatFloat(*p.MinPrice, 'f', -1, 64))
	}
	if p.MaxPrice != nil {
		v.Set("max", strconv.FormatFloat(*p.MaxPrice, 'f', -1, 64))
	}
	return "list:" + cache.QueryKey(v)
}

func normalizeSort(s string) string {
	switch strings.TrimSpace(s) {
	case "price", "-price", "name", "-name", "-created":
		return strings.TrimSpace(s)
	default:
		return "name"
	}
}

func badRequest(field, message string, err error) *common.AppError {
	return common.BadRequest(message, err).WithDetails(map[string]string{"field": field})
}
