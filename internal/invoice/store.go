package invoice

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

const invoiceColumns = `id, number, customer_id, status, vat_rate, total_excl, tax, total_incl,
paid_amount, amount_in_words, notes, quotation_id, issued_at, due_date, created_at, updated_at`

func (s *pgStore) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO invoices (id, number, customer_id, status, vat_rate, total_excl, tax, total_incl,
paid_amount, amount_in_words, notes, quotation_id, issued_at, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			inv.ID, inv.Number, inv.CustomerID, string(inv.Status), inv.VATRate, inv.TotalExcl, inv.Tax, inv.TotalIncl,
			inv.PaidAmount, inv.AmountInWords, inv.Notes, inv.QuotationID, inv.IssuedAt, inv.DueDate, inv.CreatedAt, inv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}
		if inv.PaidAmount > 0 {
			if _, err := tx.Exec(ctx, `INSERT INTO invoice_payments (invoice_id, amount, method, paid_at) VALUES ($1, $2, 'initial', $3)`,
				inv.ID, inv.PaidAmount, inv.CreatedAt); err != nil {
				return fmt.Errorf("insert initial payment: %w", err)
			}
		}
		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
	if db.ViolatedConstraint(err) == "invoices_quotation_uidx" {
		return Invoice{}, fmt.Errorf("%w: %s", ErrQuotationInvoiced, inv.QuotationID)
	}
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *pgStore) FindByQuotation(ctx context.Context, quotationID uuid.UUID) (Invoice, error) {
	var id uuid.UUID
	err := s.conn.QueryRow(ctx, `SELECT id FROM invoices WHERE quotation_id = $1`, quotationID).Scan(&id)
	if db.IsNoRows(err) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	return s.Get(ctx, id)
}

func insertItems(ctx context.Context, tx pgx.Tx, invoiceID uuid.UUID, items []Item) error {
	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`INSERT INTO invoice_items (invoice_id, position, description, quantity, unit_price, price_excl_vat, vat, total_incl)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, invoiceID, i, it.Description, it.Quantity, it.UnitPrice, it.PriceExclVAT, it.VAT, it.TotalIncl)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert invoice items: %w", err)
	}
	return nil
}

func (s *pgStore) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(s.conn.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return Invoice{}, ErrNotFound
	}
	if err != nil {
		return Invoice{}, err
	}
	rows, err := s.conn.Query(ctx, `SELECT description, quantity, unit_price, price_excl_vat, vat, total_incl
FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.Description, &it.Quantity, &it.UnitPrice, &it.PriceExclVAT, &it.VAT, &it.TotalIncl); err != nil {
			return Invoice{}, err
		}
		inv.Items = append(inv.Items, it)
	}
	return inv, rows.Err()
}

func invoiceWhere(f Filter) *db.Where {
	w := &db.Where{}
	if q := db.LikePattern(f.Query); q != "" {
		w.Add("(number ILIKE ? OR notes ILIKE ?)", q)
	}
	w.AddIf(f.Status != "", "status = ?", string(f.Status))
	if f.CustomerID != nil {
		w.Add("customer_id = ?", *f.CustomerID)
	}
	if f.OverdueAt != nil {
		w.Raw("status <> 'paid'")
		w.Add("due_date < ?", *f.OverdueAt)
	}
	return w
}

func (s *pgStore) List(ctx context.Context, f Filter, limit, offset int) ([]Invoice, error) {
	where := invoiceWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 20, 100), max(offset, 0))
	rows, err := s.conn.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices`+where.SQL()+` ORDER BY issued_at DESC, number DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (s *pgStore) Count(ctx context.Context, f Filter) (int64, error) {
	where := invoiceWhere(f)
	var total int64
	err := s.conn.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func (s *pgStore) ReplaceItems(ctx context.Context, inv Invoice) (Invoice, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE invoices
SET status = $2, vat_rate = $3, total_excl = $4, tax = $5, total_incl = $6, amount_in_words = $7, updated_at = $8
WHERE id = $1`, inv.ID, string(inv.Status), inv.VATRate, inv.TotalExcl, inv.Tax, inv.TotalIncl, inv.AmountInWords, inv.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, inv.ID, inv.Items)
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *pgStore) SavePayment(ctx context.Context, inv Invoice, p *Payment) (Invoice, error) {
	err := db.WithTx(ctx, s.conn, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE invoices SET paid_amount = $2, status = $3, updated_at = $4 WHERE id = $1`,
			inv.ID, inv.PaidAmount, string(inv.Status), inv.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		if p == nil {
			return nil
		}
		_, err = tx.Exec(ctx, `INSERT INTO invoice_payments (id, invoice_id, amount, method, reference, paid_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.InvoiceID, p.Amount, p.Method, p.Reference, p.PaidAt)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

func (s *pgStore) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := s.conn.Query(ctx, `SELECT id, invoice_id, amount, method, reference, paid_at
FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Payment, error) {
		var p Payment
		err := row.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt)
		return p, err
	})
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv    Invoice
		status string
	)
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &status, &inv.VATRate, &inv.TotalExcl, &inv.Tax, &inv.TotalIncl,
		&inv.PaidAmount, &inv.AmountInWords, &inv.Notes, &inv.QuotationID, &inv.IssuedAt, &inv.DueDate, &inv.CreatedAt, &inv.UpdatedAt)
	inv.Status = document.InvoiceStatus(status)
	return inv, err
}
