package proforma

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
	"github.com/noah-isme/backoffice-api/internal/document"
)

// Conn is the database handle the store needs.
type Conn interface {
	db.DBTX
	db.TxBeginner
}

// NewStore returns a Postgres backed Store.
func NewStore(conn Conn) Store {
	return &pgStore{conn: conn}
}

type pgStore struct {
	conn Conn
}

const proformaColumns = `id, number, customer_id, status, vat_rate, total_excl, tax, total_incl, total_discount,
amount_in_words, notes, issued_at, expires_at, created_at, updated_at`

func (s *pgStore) Create(ctx context.Context, p Proforma) (Proforma, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO proformas (id, number, customer_id, status, vat_rate, total_excl, tax, total_incl, total_discount,
amount_in_words, notes, issued_at, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			p.ID, p.Number, p.CustomerID, string(p.Status), p.VATRate, p.TotalExcl, p.Tax, p.TotalIncl, p.TotalDiscount,
			p.AmountInWords, p.Notes, p.IssuedAt, p.ExpiresAt, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert proforma: %w", err)
		}
		return insertItems(ctx, tx, p.ID, p.Items)
	})
	if err != nil {
		return Proforma{}, err
	}
	return p, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, id uuid.UUID, items []Item) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`INSERT INTO proforma_items (proforma_id, position, description, quantity, unit_price, discount_percent, price_excl_vat, vat, total_incl)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, id, i, it.Description, it.Quantity, it.UnitPrice, it.DiscountPercent, it.PriceExclVAT, it.VAT, it.TotalIncl)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert proforma items: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Proforma, error) {
	p, err := scanProforma(s.conn.QueryRow(ctx, `SELECT `+proformaColumns+` FROM proformas WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Proforma{}, ErrNotFound
	}
	if err != nil {
		return Proforma{}, err
	}
	rows, err := s.conn.Query(ctx, `SELECT description, quantity, unit_price, discount_percent, price_excl_vat, vat, total_incl
FROM proforma_items WHERE proforma_id = $1 ORDER BY position`, id)
	if err != nil {
		return Proforma{}, err
	}
	p.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.Description, &it.Quantity, &it.UnitPrice, &it.DiscountPercent, &it.PriceExclVAT, &it.VAT, &it.TotalIncl)
		return it, err
	})
	return p, err
}

func proformaWhere(f Filter) *db.Where {
	w := &db.Where{}
	if q := db.LikePattern(f.Query); q != "" {
		w.Add("(number ILIKE ? OR notes ILIKE ?)", q)
	}
	w.AddIf(f.Status != "", "status = ?", string(f.Status))
	if f.CustomerID != nil {
		w.Add("customer_id = ?", *f.CustomerID)
	}
	return w
}

func (s *pgStore) List(ctx context.Context, f Filter, limit, offset int) ([]Proforma, error) {
	where := proformaWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.conn.Query(ctx, `SELECT `+proformaColumns+` FROM proformas`+where.SQL()+` ORDER BY issued_at DESC, number DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	return collectProformas(rows)
}

func (s *pgStore) Count(ctx context.Context, f Filter) (int64, error) {
	where := proformaWhere(f)
	var total int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM proformas`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) ReplaceItems(ctx context.Context, p Proforma) (Proforma, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE proformas
SET vat_rate = $2, total_excl = $3, tax = $4, total_incl = $5, total_discount = $6, amount_in_words = $7, updated_at = $8
WHERE id = $1 AND status = $9`, p.ID, p.VATRate, p.TotalExcl, p.Tax, p.TotalIncl, p.TotalDiscount, p.AmountInWords, p.UpdatedAt,
			string(p.Status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return missingOrChanged(ctx, tx, p.ID)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM proforma_items WHERE proforma_id = $1`, p.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, p.ID, p.Items)
	})
	if err != nil {
		return Proforma{}, err
	}
	return p, nil
}

func (s *pgStore) UpdateStatus(ctx context.Context, p Proforma, from document.ProformaStatus) (Proforma, error) {
	tag, err := s.conn.Exec(ctx, `UPDATE proformas SET status = $2, expires_at = $3, updated_at = $4 WHERE id = $1 AND status = $5`,
		p.ID, string(p.Status), p.ExpiresAt, p.UpdatedAt, string(from))
	if err != nil {
		return Proforma{}, err
	}
	if tag.RowsAffected() == 0 {
		return Proforma{}, missingOrChanged(ctx, s.conn, p.ID)
	}
	return p, nil
}

func missingOrChanged(ctx context.Context, q db.DBTX, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM proformas WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusChanged
}

func (s *pgStore) ExpireBefore(ctx context.Context, now time.Time) ([]Proforma, error) {
	rows, err := s.conn.Query(ctx, `UPDATE proformas SET status = 'expired', updated_at = $1
WHERE status IN ('pending', 'sent') AND expires_at < $1
RETURNING `+proformaColumns, now)
	if err != nil {
		return nil, err
	}
	return collectProformas(rows)
}

func collectProformas(rows pgx.Rows) ([]Proforma, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Proforma, error) {
		return scanProforma(row)
	})
}

func scanProforma(row pgx.Row) (Proforma, error) {
	var (
		p      Proforma
		status string
	)
	err := row.Scan(&p.ID, &p.Number, &p.CustomerID, &status, &p.VATRate, &p.TotalExcl, &p.Tax, &p.TotalIncl, &p.TotalDiscount,
		&p.AmountInWords, &p.Notes, &p.IssuedAt, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	p.Status = document.ProformaStatus(status)
	return p, err
}
