package dashboard

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// NewStore returns a Postgres backed Querier.
func NewStore(conn db.DBTX) Querier {
	return &pgStore{db: conn}
}

type pgStore struct {
	db db.DBTX
}

const bucketsSQL = `
SELECT 'invoice' AS kind, status, count(*), COALESCE(sum(total_incl), 0)::float8
  FROM invoices WHERE issued_at >= $1 AND issued_at < $2 GROUP BY status
UNION ALL
SELECT 'proforma', status, count(*), COALESCE(sum(total_incl), 0)::float8
  FROM proformas WHERE issued_at >= $1 AND issued_at < $2 GROUP BY status
UNION ALL
SELECT 'quotation', status, count(*), COALESCE(sum(total_incl), 0)::float8
  FROM quotations WHERE issued_at >= $1 AND issued_at < $2 GROUP BY status`

func (s *pgStore) DocumentBuckets(ctx context.Context, r Range) ([]StatusRow, error) {
	rows, err := s.db.Query(ctx, bucketsSQL, r.From, r.To)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (StatusRow, error) {
		var sr StatusRow
		err := row.Scan(&sr.Kind, &sr.Status, &sr.Count, &sr.TotalIncl)
		return sr, err
	})
}

func (s *pgStore) Receivables(ctx context.Context, r Range) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `
SELECT COALESCE(sum(total_incl - paid_amount), 0)::float8
  FROM invoices
 WHERE status IN ('unpaid','partial') AND issued_at >= $1 AND issued_at < $2`, r.From, r.To).Scan(&total)
	return total, err
}

func (s *pgStore) CashpowerVolume(ctx context.Context, r Range) (CashpowerVolume, error) {
	var v CashpowerVolume
	err := s.db.QueryRow(ctx, `
SELECT count(*), COALESCE(sum(amount), 0)::float8, COALESCE(sum(units), 0)::float8
  FROM cashpower_transactions
 WHERE created_at >= $1 AND created_at < $2`, r.From, r.To).Scan(&v.Count, &v.Amount, &v.Units)
	return v, err
}
