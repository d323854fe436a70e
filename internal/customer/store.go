package customer

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// NewStore returns a Postgres backed Store.
func NewStore(conn db.DBTX) Store {
	return &pgStore{db: conn}
}

type pgStore struct {
	db db.DBTX
}

const columns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(address, ''), COALESCE(tin, ''), created_at, updated_at`

func searchWhere(query string) *db.Where {
	w := &db.Where{}
	if q := db.LikePattern(query); q != "" {
		w.Add("(name ILIKE ? OR email ILIKE ? OR phone ILIKE ? OR tin ILIKE ?)", q)
	}
	return w
}

func (s *pgStore) List(ctx context.Context, query string, limit, offset int) ([]Customer, error) {
	if s == nil || s.db == nil {
		return nil, db.ErrUnavailable
	}
	where := searchWhere(query)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT `+columns+` FROM customers`+where.SQL()+` ORDER BY lower(name), id`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgStore) Count(ctx context.Context, query string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	where := searchWhere(query)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Customer, error) {
	if s == nil || s.db == nil {
		return Customer{}, db.ErrUnavailable
	}
	c, err := scanCustomer(s.db.QueryRow(ctx, `SELECT `+columns+` FROM customers WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

func (s *pgStore) Create(ctx context.Context, c Customer) (Customer, error) {
	if s == nil || s.db == nil {
		return Customer{}, db.ErrUnavailable
	}
	return scanCustomer(s.db.QueryRow(ctx, `INSERT INTO customers (id, name, email, phone, address, tin, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
RETURNING `+columns, c.ID, c.Name, c.Email, c.Phone, c.Address, c.TIN, c.CreatedAt, c.UpdatedAt))
}

func (s *pgStore) Update(ctx context.Context, c Customer) (Customer, error) {
	if s == nil || s.db == nil {
		return Customer{}, db.ErrUnavailable
	}
	out, err := scanCustomer(s.db.QueryRow(ctx, `UPDATE customers
SET name = $2, email = NULLIF($3, ''), phone = NULLIF($4, ''), address = NULLIF($5, ''), tin = NULLIF($6, ''), updated_at = $7
WHERE id = $1
RETURNING `+columns, c.ID, c.Name, c.Email, c.Phone, c.Address, c.TIN, c.UpdatedAt))
	if db.IsNoRows(err) {
		return Customer{}, ErrNotFound
	}
	return out, err
}

func (s *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.db == nil {
		return db.ErrUnavailable
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TIN, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}
