package cashpower

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

const txColumns = `id, customer_id, meter_number, amount, token, units, status, created_at`

func (s *pgStore) Create(ctx context.Context, t Transaction) (Transaction, error) {
	return scanTransaction(s.db.QueryRow(ctx, `INSERT INTO cashpower_transactions (id, customer_id, meter_number, amount, token, units, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+txColumns,
		t.ID, t.CustomerID, t.MeterNumber, t.Amount, t.Token, t.Units, t.Status, t.CreatedAt))
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(ctx, `SELECT `+txColumns+` FROM cashpower_transactions WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Transaction{}, ErrNotFound
	}
	return t, err
}

func txWhere(f Filter) *db.Where {
	w := &db.Where{}
	w.AddIf(f.Meter != "", "meter_number = ?", f.Meter)
	if f.CustomerID != nil {
		w.Add("customer_id = ?", *f.CustomerID)
	}
	if f.From != nil {
		w.Add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.Add("created_at < ?", *f.To)
	}
	return w
}

func (s *pgStore) List(ctx context.Context, f Filter, limit, offset int) ([]Transaction, error) {
	where := txWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT `+txColumns+` FROM cashpower_transactions`+where.SQL()+` ORDER BY created_at DESC, id`+page, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Transaction, error) {
		return scanTransaction(row)
	})
}

func (s *pgStore) Count(ctx context.Context, f Filter) (int64, error) {
	where := txWhere(f)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM cashpower_transactions`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.CustomerID, &t.MeterNumber, &t.Amount, &t.Token, &t.Units, &t.Status, &t.CreatedAt)
	return t, err
}
