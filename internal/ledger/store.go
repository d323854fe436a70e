package ledger

import (
	"context"
	"fmt"

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

const entryColumns = `id, direction, amount, balance_after, source, reference, description, created_at`

func (s *pgStore) AdjustBalance(ctx context.Context, account string, delta float64, allowNegative bool) (float64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	var balance float64
	err := s.db.QueryRow(ctx, `UPDATE ledger_accounts
SET balance = balance + $2, updated_at = now()
WHERE id = $1 AND ($3 OR balance + $2 >= 0)
RETURNING balance`, account, delta, allowNegative).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !db.IsNoRows(err) {
		return 0, err
	}
	if _, getErr := s.GetBalance(ctx, account); getErr != nil {
		return 0, getErr
	}
	return 0, ErrInsufficientBalance
}

func (s *pgStore) GetBalance(ctx context.Context, account string) (float64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	var balance float64
	err := s.db.QueryRow(ctx, `SELECT balance FROM ledger_accounts WHERE id = $1`, account).Scan(&balance)
	if db.IsNoRows(err) {
		return 0, fmt.Errorf("ledger: account %q not found", account)
	}
	return balance, err
}

func (s *pgStore) InsertTransaction(ctx context.Context, account string, e Entry) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, db.ErrUnavailable
	}
	row := s.db.QueryRow(ctx, `INSERT INTO ledger_transactions
(id, account_id, direction, amount, balance_after, source, reference, description, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+entryColumns,
		e.ID, account, string(e.Direction), e.Amount, e.BalanceAfter, e.Source, e.Reference, e.Description, e.CreatedAt)
	return scanEntry(row)
}

func (s *pgStore) ListTransactions(ctx context.Context, account string, f Filter, limit, offset int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, db.ErrUnavailable
	}
	where := filterWhere(account, f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT `+entryColumns+` FROM ledger_transactions`+where.SQL()+` ORDER BY created_at DESC, id`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgStore) CountTransactions(ctx context.Context, account string, f Filter) (int64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	where := filterWhere(account, f)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_transactions`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func filterWhere(account string, f Filter) *db.Where {
	w := &db.Where{}
	w.Add("account_id = ?", account)
	w.AddIf(f.Direction != "", "direction = ?", string(f.Direction))
	w.AddIf(f.Source != "", "source = ?", f.Source)
	if f.From != nil {
		w.Add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.Add("created_at < ?", *f.To)
	}
	return w
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e         Entry
		direction string
	)
	if err := row.Scan(&e.ID, &direction, &e.Amount, &e.BalanceAfter, &e.Source, &e.Reference, &e.Description, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Direction = Direction(direction)
	return e, nil
}
