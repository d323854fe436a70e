package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// NewStore returns a Postgres backed Store. Stock adjustments need a
// transaction, so it takes a pool-like handle that can begin one.
func NewStore(conn interface {
	db.DBTX
	db.TxBeginner
}) Store {
	return &pgStore{db: conn, tx: conn}
}

type pgStore struct {
	db db.DBTX
	tx db.TxBeginner
}

const productColumns = `id, name, category, description, unit_price, active, created_at, updated_at`

const stockColumns = `id, product_id, name, sku, quantity, unit_cost, location, created_at, updated_at`

func productWhere(p ListParams) *db.Where {
	w := &db.Where{}
	if q := db.LikePattern(p.Query); q != "" {
		w.Add("(name ILIKE ? OR description ILIKE ?)", q)
	}
	w.AddIf(p.Category != "", "category = ?", p.Category)
	if p.Active != nil {
		w.Add("active = ?", *p.Active)
	}
	if p.MinPrice != nil {
		w.Add("unit_price >= ?", *p.MinPrice)
	}
	if p.MaxPrice != nil {
		w.Add("unit_price <= ?", *p.MaxPrice)
	}
	return w
}

func productOrder(sort string) string {
	switch sort {
	case "price":
		return " ORDER BY unit_price ASC, id"
	case "-price":
		return " ORDER BY unit_price DESC, id"
	case "-name":
		return " ORDER BY lower(name) DESC, id"
	case "-created":
		return " ORDER BY created_at DESC, id"
	default:
		return " ORDER BY lower(name) ASC, id"
	}
}

func (s *pgStore) ListProducts(ctx context.Context, p ListParams) ([]Product, error) {
	where := productWhere(p)
	page, args := where.Page(db.ClampLimit(p.Limit, 20, 100), p.Offset())
	rows, err := s.db.Query(ctx, `SELECT `+productColumns+` FROM products`+where.SQL()+productOrder(p.Sort)+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		item, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *pgStore) CountProducts(ctx context.Context, p ListParams) (int64, error) {
	where := productWhere(p)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT category FROM products WHERE category <> '' ORDER BY category`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *pgStore) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	p, err := scanProduct(s.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *pgStore) CreateProduct(ctx context.Context, p Product) (Product, error) {
	return scanProduct(s.db.QueryRow(ctx, `INSERT INTO products (id, name, category, description, unit_price, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Description, p.UnitPrice, p.Active, p.CreatedAt, p.UpdatedAt))
}

func (s *pgStore) UpdateProduct(ctx context.Context, p Product) (Product, error) {
	out, err := scanProduct(s.db.QueryRow(ctx, `UPDATE products
SET name = $2, category = $3, description = $4, unit_price = $5, active = $6, updated_at = $7
WHERE id = $1 RETURNING `+productColumns,
		p.ID, p.Name, p.Category, p.Description, p.UnitPrice, p.Active, p.UpdatedAt))
	if db.IsNoRows(err) {
		return Product{}, ErrNotFound
	}
	return out, err
}

func (s *pgStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func stockWhere(f StockFilter) *db.Where {
	w := &db.Where{}
	if q := db.LikePattern(f.Query); q != "" {
		w.Add("(name ILIKE ? OR sku ILIKE ?)", q)
	}
	if f.ProductID != nil {
		w.Add("product_id = ?", *f.ProductID)
	}
	w.AddIf(f.Location != "", "location = ?", f.Location)
	if f.LowStock != nil {
		w.Add("quantity <= ?", *f.LowStock)
	}
	return w
}

func (s *pgStore) ListStock(ctx context.Context, f StockFilter, limit, offset int) ([]StockItem, error) {
	where := stockWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT `+stockColumns+` FROM stock_items`+where.SQL()+` ORDER BY lower(name), id`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockItem
	for rows.Next() {
		item, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *pgStore) CountStock(ctx context.Context, f StockFilter) (int64, error) {
	where := stockWhere(f)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM stock_items`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) GetStock(ctx context.Context, id uuid.UUID) (StockItem, error) {
	item, err := scanStock(s.db.QueryRow(ctx, `SELECT `+stockColumns+` FROM stock_items WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return StockItem{}, ErrNotFound
	}
	return item, err
}

func (s *pgStore) CreateStock(ctx context.Context, item StockItem) (StockItem, error) {
	out, err := scanStock(s.db.QueryRow(ctx, `INSERT INTO stock_items (id, product_id, name, sku, quantity, unit_cost, location, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+stockColumns,
		item.ID, item.ProductID, item.Name, item.SKU, item.Quantity, item.UnitCost, item.Location, item.CreatedAt, item.UpdatedAt))
	if db.IsUniqueViolation(err) {
		return StockItem{}, ErrDuplicateSKU
	}
	return out, err
}

func (s *pgStore) UpdateStock(ctx context.Context, item StockItem) (StockItem, error) {
	out, err := scanStock(s.db.QueryRow(ctx, `UPDATE stock_items
SET product_id = $2, name = $3, sku = $4, unit_cost = $5, location = $6, updated_at = $7
WHERE id = $1 RETURNING `+stockColumns,
		item.ID, item.ProductID, item.Name, item.SKU, item.UnitCost, item.Location, item.UpdatedAt))
	switch {
	case db.IsNoRows(err):
		return StockItem{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return StockItem{}, ErrDuplicateSKU
	}
	return out, err
}

func (s *pgStore) DeleteStock(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM stock_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock updates the quantity and records the movement in one transaction.
func (s *pgStore) AdjustStock(ctx context.Context, id uuid.UUID, delta int, reason string) (StockItem, error) {
	var out StockItem
	err := db.WithTx(ctx, s.tx, func(tx pgx.Tx) error {
		item, err := scanStock(tx.QueryRow(ctx, `UPDATE stock_items
SET quantity = quantity + $2, updated_at = now()
WHERE id = $1 AND quantity + $2 >= 0
RETURNING `+stockColumns, id, delta))
		if db.IsNoRows(err) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_items WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrNegativeStock
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO stock_movements (stock_item_id, delta, reason) VALUES ($1, $2, $3)`, id, delta, reason); err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.UnitPrice, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanStock(row pgx.Row) (StockItem, error) {
	var (
		item      StockItem
		productID *uuid.UUID
	)
	if err := row.Scan(&item.ID, &productID, &item.Name, &item.SKU, &item.Quantity, &item.UnitCost, &item.Location, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return StockItem{}, err
	}
	item.ProductID = productID
	return item, nil
}
