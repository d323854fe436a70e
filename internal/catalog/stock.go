package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// StockItem is a tracked piece of inventory such as routers, meters or cable drums.
type StockItem struct {
	ID        uuid.UUID  `json:"id"`
	ProductID *uuid.UUID `json:"productId,omitempty"`
	Name      string     `json:"name"`
	SKU       string     `json:"sku"`
	Quantity  int        `json:"quantity"`
	UnitCost  float64    `json:"unitCost"`
	Location  string     `json:"location"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Value is quantity times unit cost.
func (s StockItem) Value() float64 {
	return pricing.Round2(float64(s.Quantity) * s.UnitCost)
}

// StockInput is the writable part of a stock item.
type StockInput struct {
	ProductID *uuid.UUID `json:"productId"`
	Name      string     `json:"name" validate:"required,max=200"`
	SKU       string     `json:"sku" validate:"required,max=64"`
	Quantity  int        `json:"quantity" validate:"gte=0"`
	UnitCost  float64    `json:"unitCost" validate:"gte=0"`
	Location  string     `json:"location" validate:"max=120"`
}

// Adjustment changes a stock quantity by Delta.
type Adjustment struct {
	Delta  int    `json:"delta" validate:"ne=0"`
	Reason string `json:"reason" validate:"max=200"`
}

// StockFilter narrows stock listings.
type StockFilter struct {
	Query     string
	ProductID *uuid.UUID
	Location  string
	LowStock  *int
}

// ListStock returns a page of stock items.
func (s *Service) ListStock(ctx context.Context, f StockFilter, page common.Page) ([]StockItem, int64, error) {
	items, err := s.store.ListStock(ctx, f, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountStock(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// GetStock loads one stock item.
func (s *Service) GetStock(ctx context.Context, id uuid.UUID) (StockItem, error) {
	return s.store.GetStock(ctx, id)
}

// CreateStock validates and stores a stock item.
func (s *Service) CreateStock(ctx context.Context, in StockInput) (StockItem, error) {
	in = normaliseStock(in)
	if err := common.Validate(in); err != nil {
		return StockItem{}, err
	}
	if err := s.checkProduct(ctx, in.ProductID); err != nil {
		return StockItem{}, err
	}
	now := s.now().UTC()
	return s.store.CreateStock(ctx, StockItem{
		ID:        uuid.New(),
		ProductID: in.ProductID,
		Name:      in.Name,
		SKU:       in.SKU,
		Quantity:  in.Quantity,
		UnitCost:  pricing.Round2(in.UnitCost),
		Location:  in.Location,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// UpdateStock replaces the descriptive fields of a stock item. Quantity changes
// go through AdjustStock so they leave a movement record.
func (s *Service) UpdateStock(ctx context.Context, id uuid.UUID, in StockInput) (StockItem, error) {
	in = normaliseStock(in)
	if err := common.Validate(in); err != nil {
		return StockItem{}, err
	}
	if err := s.checkProduct(ctx, in.ProductID); err != nil {
		return StockItem{}, err
	}
	item, err := s.store.GetStock(ctx, id)
	if err != nil {
		return StockItem{}, err
	}
	item.ProductID = in.ProductID
	item.Name = in.Name
	item.SKU = in.SKU
	item.UnitCost = pricing.Round2(in.UnitCost)
	item.Location = in.Location
	item.UpdatedAt = s.now().UTC()
	return s.store.UpdateStock(ctx, item)
}

// DeleteStock removes a stock item and its movements.
func (s *Service) DeleteStock(ctx context.Context, id uuid.UUID) error {
	return s.store.DeleteStock(ctx, id)
}

// AdjustStock applies a signed quantity change, refusing to go below zero.
func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, adj Adjustment) (StockItem, error) {
	adj.Reason = strings.TrimSpace(adj.Reason)
	if err := common.Validate(adj); err != nil {
		return StockItem{}, err
	}
	return s.store.AdjustStock(ctx, id, adj.Delta, adj.Reason)
}

func (s *Service) checkProduct(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.store.GetProduct(ctx, *id); err != nil {
		return err
	}
	return nil
}

func normaliseStock(in StockInput) StockInput {
	in.Name = strings.TrimSpace(in.Name)
	in.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	in.Location = strings.TrimSpace(in.Location)
	return in
}
