package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/lock"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown invoices.
	ErrNotFound = errors.New("invoice: not found")
	// ErrInvalidAmount is returned for non-positive payments or negative paid amounts.
	ErrInvalidAmount = errors.New("invoice: invalid amount")
	// ErrQuotationInvoiced is returned when a quotation already has an invoice.
	ErrQuotationInvoiced = errors.New("invoice: quotation already invoiced")
)

// Item is a persisted invoice line with its rounded totals.
type Item struct {
	document.InvoiceLine
	PriceExclVAT float64 `json:"priceExclVat"`
	VAT          float64 `json:"vat"`
	TotalIncl    float64 `json:"totalIncl"`
}

// Payment is one recorded receipt against an invoice.
type Payment struct {
	ID        uuid.UUID `json:"id"`
	InvoiceID uuid.UUID `json:"invoiceId"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method,omitempty"`
	Reference string    `json:"reference,omitempty"`
	PaidAt    time.Time `json:"paidAt"`
}

// Invoice is a billed document priced with the inclusive convention.
type Invoice struct {
	ID          uuid.UUID              `json:"id"`
	Number      string                 `json:"number"`
	CustomerID  uuid.UUID              `json:"customerId"`
	Status      document.InvoiceStatus `json:"status"`
	VATRate     float64                `json:"vatRate"`
	document.Totals
	PaidAmount  float64    `json:"paidAmount"`
	Notes       string     `json:"notes,omitempty"`
	QuotationID *uuid.UUID `json:"quotationId,omitempty"`
	IssuedAt    time.Time  `json:"issuedAt"`
	DueDate     time.Time  `json:"dueDate"`
	Items       []Item     `json:"items,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Balance is the amount still owed, never negative.
func (inv Invoice) Balance() float64 {
	return max(pricing.Round2(inv.TotalIncl-inv.PaidAmount), 0)
}

// Overdue reports whether the invoice is past due and not fully paid.
func (inv Invoice) Overdue(now time.Time) bool {
	return inv.Status != document.InvoicePaid && now.After(inv.DueDate)
}

// CreateInput is the payload for a new invoice.
type CreateInput struct {
	CustomerID  uuid.UUID              `json:"customerId" validate:"required"`
	Items       []document.InvoiceLine `json:"items" validate:"required,min=1,dive"`
	Term        string                 `json:"term"`
	PaidAmount  float64                `json:"paidAmount" validate:"gte=0"`
	Notes       string                 `json:"notes" validate:"max=2000"`
	QuotationID *uuid.UUID             `json:"quotationId"`
	IssuedAt    *time.Time             `json:"issuedAt"`
}

// PaymentInput records money received.
type PaymentInput struct {
	Amount    float64 `json:"amount" validate:"gt=0"`
	Method    string  `json:"method" validate:"max=50"`
	Reference string  `json:"reference" validate:"max=120"`
}

// Filter narrows invoice listings.
type Filter struct {
	Query      string
	Status     document.InvoiceStatus
	CustomerID *uuid.UUID
	// OverdueAt, when set, keeps unpaid and partial invoices due before it.
	OverdueAt *time.Time
}

// Store persists invoices with their items and payments.
type Store interface {
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Get(ctx context.Context, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Invoice, error)
	Count(ctx context.Context, f Filter) (int64, error)
	ReplaceItems(ctx context.Context, inv Invoice) (Invoice, error)
	// SavePayment stores the new paid amount and status, appending p when it is not nil.
	SavePayment(ctx context.Context, inv Invoice, p *Payment) (Invoice, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	// FindByQuotation returns the invoice issued from a quotation, or ErrNotFound.
	FindByQuotation(ctx context.Context, quotationID uuid.UUID) (Invoice, error)
}

// CustomerChecker confirms a customer exists.
type CustomerChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// Service implements invoice use cases.
type Service struct {
	Store       Store
	Customers   CustomerChecker
	Numbers     document.Sequencer
	Locks       lock.Runner
	LockTTL     time.Duration
	Events      events.Emitter
	VATRate     float64
	DefaultTerm document.Term
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) engine() pricing.Engine {
	return document.KindInvoice.Engine(s.VATRate)
}

func (s *Service) emitter() events.Emitter {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

var localLocks lock.Local

func (s *Service) locks() lock.Runner {
	if s.Locks == nil {
		return &localLocks
	}
	return s.Locks
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) defaultTerm() document.Term {
	if s.DefaultTerm.IsZero() {
		return document.Term{Days: 30}
	}
	return s.DefaultTerm
}

// Price computes rounded per-line and document totals for lines.
func (s *Service) Price(lines []document.InvoiceLine) ([]Item, document.Totals) {
	engine := s.engine()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		t := pricing.RoundLine(engine.Line(l.PricingItem()))
		items = append(items, Item{InvoiceLine: l, PriceExclVAT: t.PriceExclVAT, VAT: t.VAT, TotalIncl: t.TotalIncl})
	}
	return items, document.ComputeTotals(engine, lines)
}

// Create validates, prices, numbers and stores a new invoice.
func (s *Service) Create(ctx context.Context, in CreateInput) (Invoice, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].Description = strings.TrimSpace(in.Items[i].Description)
	}
	if err := common.Validate(in); err != nil {
		return Invoice{}, err
	}
	if s.Customers != nil {
		if err := s.Customers.Exists(ctx, in.CustomerID); err != nil {
			return Invoice{}, err
		}
	}
	now := s.now()
	issued := now
	if in.IssuedAt != nil {
		issued = in.IssuedAt.UTC()
	}
	items, totals := s.Price(in.Items)
	if err := totals.Check(); err != nil {
		return Invoice{}, err
	}
	number, err := document.NextNumber(ctx, s.Numbers, document.KindInvoice, issued)
	if err != nil {
		return Invoice{}, fmt.Errorf("allocate invoice number: %w", err)
	}
	paid := pricing.Round2(in.PaidAmount)
	inv := Invoice{
		ID:          uuid.New(),
		Number:      number,
		CustomerID:  in.CustomerID,
		Status:      document.DeriveInvoiceStatus(paid, totals.TotalIncl),
		VATRate:     s.engine().VATRate,
		Totals:      totals,
		PaidAmount:  paid,
		Notes:       in.Notes,
		QuotationID: in.QuotationID,
		IssuedAt:    issued,
		DueDate:     document.ParseTermOr(in.Term, s.defaultTerm()).AddTo(issued),
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	out, err := s.Store.Create(ctx, inv)
	if err != nil {
		return Invoice{}, err
	}
	obs.Inc(obs.DocumentsCreatedTotal, string(document.KindInvoice))
	_, _ = s.emitter().Emit(ctx, events.TopicInvoiceCreated, out.ID, map[string]any{
		"number":     out.Number,
		"customerId": out.CustomerID,
		"totalIncl":  out.TotalIncl,
		"status":     out.Status,
	})
	return out, nil
}

// Get loads an invoice with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Invoice, error) {
	return s.Store.Get(ctx, id)
}

// List returns a page of invoices without items.
func (s *Service) List(ctx context.Context, f Filter, page common.Page) ([]Invoice, int64, error) {
	items, err := s.Store.List(ctx, f, page.Size, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Payments lists receipts recorded against an invoice.
func (s *Service) Payments(ctx context.Context, id uuid.UUID) ([]Payment, error) {
	if _, err := s.Store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.Store.ListPayments(ctx, id)
}

// RecordPayment adds a receipt and re-derives the status. Fully paid
// invoices take no further payments.
func (s *Service) RecordPayment(ctx context.Context, id uuid.UUID, in PaymentInput) (Invoice, error) {
	in.Method = strings.TrimSpace(in.Method)
	in.Reference = strings.TrimSpace(in.Reference)
	if err := common.Validate(in); err != nil {
		return Invoice{}, err
	}
	var out Invoice
	err := s.withInvoiceLock(ctx, id, func(ctx context.Context) error {
		inv, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == document.InvoicePaid {
			return fmt.Errorf("%w: invoice %s is already paid", document.ErrDocumentLocked, inv.Number)
		}
		amount := pricing.Round2(in.Amount)
		inv.PaidAmount = pricing.Round2(inv.PaidAmount + amount)
		inv.Status = document.DeriveInvoiceStatus(inv.PaidAmount, inv.TotalIncl)
		inv.UpdatedAt = s.now()
		out, err = s.Store.SavePayment(ctx, inv, &Payment{
			ID:        uuid.New(),
			InvoiceID: inv.ID,
			Amount:    amount,
			Method:    in.Method,
			Reference: in.Reference,
			PaidAt:    inv.UpdatedAt,
		})
		return err
	})
	obs.Inc(obs.PaymentsRecordedTotal, obs.Result(err))
	if err != nil {
		return Invoice{}, err
	}
	s.emitPayment(ctx, out)
	return out, nil
}

// SetPaidAmount overwrites the paid amount, correcting earlier entries.
func (s *Service) SetPaidAmount(ctx context.Context, id uuid.UUID, amount float64) (Invoice, error) {
	if amount < 0 {
		return Invoice{}, ErrInvalidAmount
	}
	var out Invoice
	err := s.withInvoiceLock(ctx, id, func(ctx context.Context) error {
		inv, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		inv.PaidAmount = pricing.Round2(amount)
		inv.Status = document.DeriveInvoiceStatus(inv.PaidAmount, inv.TotalIncl)
		inv.UpdatedAt = s.now()
		out, err = s.Store.SavePayment(ctx, inv, nil)
		return err
	})
	obs.Inc(obs.PaymentsRecordedTotal, obs.Result(err))
	if err != nil {
		return Invoice{}, err
	}
	s.emitPayment(ctx, out)
	return out, nil
}

// ReplaceItems reprices the invoice with new lines. Only unpaid invoices are editable.
func (s *Service) ReplaceItems(ctx context.Context, id uuid.UUID, lines []document.InvoiceLine) (Invoice, error) {
	for i := range lines {
		lines[i].Description = strings.TrimSpace(lines[i].Description)
	}
	if err := common.Validate(struct {
		Items []document.InvoiceLine `json:"items" validate:"required,min=1,dive"`
	}{lines}); err != nil {
		return Invoice{}, err
	}
	var out Invoice
	err := s.withInvoiceLock(ctx, id, func(ctx context.Context) error {
		inv, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !inv.Status.CanEditItems() {
			return fmt.Errorf("%w: invoice %s is %s", document.ErrDocumentLocked, inv.Number, inv.Status)
		}
		items, totals := s.Price(lines)
		if err := totals.Check(); err != nil {
			return err
		}
		inv.Items, inv.Totals = items, totals
		inv.VATRate = s.engine().VATRate
		inv.Status = document.DeriveInvoiceStatus(inv.PaidAmount, inv.TotalIncl)
		inv.UpdatedAt = s.now()
		out, err = s.Store.ReplaceItems(ctx, inv)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	_, _ = s.emitter().Emit(ctx, events.TopicInvoiceItemsReplaced, out.ID, map[string]any{
		"number":    out.Number,
		"totalIncl": out.TotalIncl,
		"items":     len(out.Items),
	})
	return out, nil
}

func (s *Service) withInvoiceLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	return s.locks().WithLock(ctx, lock.Key("invoice", id.String()), s.lockTTL(), fn)
}

func (s *Service) emitPayment(ctx context.Context, inv Invoice) {
	_, _ = s.emitter().Emit(ctx, events.TopicInvoicePaymentRecorded, inv.ID, map[string]any{
		"number":     inv.Number,
		"paidAmount": inv.PaidAmount,
		"status":     inv.Status,
		"balance":    inv.Balance(),
	})
}

// ForQuotation returns the invoice a quotation was converted into.
func (s *Service) ForQuotation(ctx context.Context, quotationID uuid.UUID) (Invoice, error) {
	return s.Store.FindByQuotation(ctx, quotationID)
}
