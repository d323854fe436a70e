package quotation

import (
	"context"
	"fmt"

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

const quotationColumns = `id, number, customer_id, status, vat_rate, total_excl, tax, total_incl, total_discount,
amount_in_words, notes, issued_at, valid_until, converted_invoice_id, created_at, updated_at`

func (s *pgStore) Create(ctx context.Context, q Quotation) (Quotation, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO quotations (id, number, customer_id, status, vat_rate, total_excl, tax, total_incl, total_discount,
amount_in_words, notes, issued_at, valid_until, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			q.ID, q.Number, q.CustomerID, string(q.Status), q.VATRate, q.TotalExcl, q.Tax, q.TotalIncl, q.TotalDiscount,
			q.AmountInWords, q.Notes, q.IssuedAt, q.ValidUntil, q.CreatedAt, q.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert quotation: %w", err)
		}
		return insertItems(ctx, tx, q.ID, q.Items)
	})
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func insertItems(ctx context.Context, tx pgx.Tx, id uuid.UUID, items []Item) error {
	rows := make([][]any, 0, len(items))
	for i, it := range items {
		rows = append(rows, []any{id, i, it.Description, it.Quantity, it.UnitPrice, it.DiscountPercent, it.PriceExclVAT, it.VAT, it.TotalIncl})
	}
	_, err := tx.CopyFrom(ctx, pgx.Identifier{"quotation_items"},
		[]string{"quotation_id", "position", "description", "quantity", "unit_price", "discount_percent", "price_excl_vat", "vat", "total_incl"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("insert quotation items: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	q, err := scanQuotation(s.conn.QueryRow(ctx, `SELECT `+quotationColumns+` FROM quotations WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Quotation{}, ErrNotFound
	}
	if err != nil {
		return Quotation{}, err
	}
	rows, err := s.conn.Query(ctx, `SELECT description, quantity, unit_price, discount_percent, price_excl_vat, vat, total_incl
FROM quotation_items WHERE quotation_id = $1 ORDER BY position`, id)
	if err != nil {
		return Quotation{}, err
	}
	q.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.Description, &it.Quantity, &it.UnitPrice, &it.DiscountPercent, &it.PriceExclVAT, &it.VAT, &it.TotalIncl)
		return it, err
	})
	return q, err
}

func quotationWhere(f Filter) *db.Where {
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

func (s *pgStore) List(ctx context.Context, f Filter, limit, offset int) ([]Quotation, error) {
	where := quotationWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.conn.Query(ctx, `SELECT `+quotationColumns+` FROM quotations`+where.SQL()+` ORDER BY issued_at DESC, number DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Quotation, error) {
		return scanQuotation(row)
	})
}

func (s *pgStore) Count(ctx context.Context, f Filter) (int64, error) {
	where := quotationWhere(f)
	var total int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) ReplaceItems(ctx context.Context, q Quotation) (Quotation, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE quotations
SET vat_rate = $2, total_excl = $3, tax = $4, total_incl = $5, total_discount = $6, amount_in_words = $7, updated_at = $8
WHERE id = $1`, q.ID, q.VATRate, q.TotalExcl, q.Tax, q.TotalIncl, q.TotalDiscount, q.AmountInWords, q.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, q.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, q.ID, q.Items)
	})
	if err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (s *pgStore) UpdateStatus(ctx context.Context, q Quotation) (Quotation, error) {
	tag, err := s.conn.Exec(ctx, `UPDATE quotations SET status = $2, converted_invoice_id = $3, updated_at = $4 WHERE id = $1`,
		q.ID, string(q.Status), q.ConvertedInvoiceID, q.UpdatedAt)
	if err != nil {
		return Quotation{}, err
	}
	if tag.RowsAffected() == 0 {
		return Quotation{}, ErrNotFound
	}
	return q, nil
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var (
		q      Quotation
		status string
	)
	err := row.Scan(&q.ID, &q.Number, &q.CustomerID, &status, &q.VATRate, &q.TotalExcl, &q.Tax, &q.TotalIncl, &q.TotalDiscount,
		&q.AmountInWords, &q.Notes, &q.IssuedAt, &q.ValidUntil, &q.ConvertedInvoiceID, &q.CreatedAt, &q.UpdatedAt)
	q.Status = document.QuotationStatus(status)
	return q, err
}
