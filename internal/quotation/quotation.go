package quotation

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
	"github.com/noah-isme/backoffice-api/internal/invoice"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/lock"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

var (
	// ErrNotFound is returned for unknown quotations.
	ErrNotFound = errors.New("quotation: not found")
	// ErrLedgerPosting is returned when a conversion succeeded but the ledger rejected the posting.
	ErrLedgerPosting = errors.New("quotation: ledger posting failed")
)

// Item is a persisted quotation line with its rounded totals.
type Item struct {
	document.QuotationLine
	PriceExclVAT float64 `json:"priceExclVat"`
	VAT          float64 `json:"vat"`
	TotalIncl    float64 `json:"totalIncl"`
}

// Quotation is an offer priced with the discount-first convention.
type Quotation struct {
	ID         uuid.UUID                `json:"id"`
	Number     string                   `json:"number"`
	CustomerID uuid.UUID                `json:"customerId"`
	Status     document.QuotationStatus `json:"status"`
	VATRate    float64                  `json:"vatRate"`
	document.Totals
	Notes              string     `json:"notes,omitempty"`
	IssuedAt           time.Time  `json:"issuedAt"`
	ValidUntil         time.Time  `json:"validUntil"`
	ConvertedInvoiceID *uuid.UUID `json:"convertedInvoiceId,omitempty"`
	Items              []Item     `json:"items,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// CreateInput is the payload for a new quotation.
type CreateInput struct {
	CustomerID uuid.UUID                `json:"customerId" validate:"required"`
	Items      []document.QuotationLine `json:"items" validate:"required,min=1,dive"`
	Validity   string                   `json:"validity"`
	Notes      string                   `json:"notes" validate:"max=2000"`
	IssuedAt   *time.Time               `json:"issuedAt"`
}

// ConvertInput tunes the invoice produced by Convert.
type ConvertInput struct {
	Term string `json:"term"`
}

// Conversion is the outcome of converting a quotation.
type Conversion struct {
	Quotation Quotation       `json:"quotation"`
	Invoice   invoice.Invoice `json:"invoice"`
	Entry     *ledger.Entry   `json:"ledgerEntry,omitempty"`
}

// Filter narrows quotation listings.
type Filter struct {
	Query      string
	Status     document.QuotationStatus
	CustomerID *uuid.UUID
}

// Store persists quotations.
type Store interface {
	Create(ctx context.Context, q Quotation) (Quotation, error)
	Get(ctx context.Context, id uuid.UUID) (Quotation, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Quotation, error)
	Count(ctx context.Context, f Filter) (int64, error)
	ReplaceItems(ctx context.Context, q Quotation) (Quotation, error)
	UpdateStatus(ctx context.Context, q Quotation) (Quotation, error)
}

// CustomerChecker confirms a customer exists.
type CustomerChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// InvoiceCreator issues the invoice a quotation converts into.
type InvoiceCreator interface {
	Create(ctx context.Context, in invoice.CreateInput) (invoice.Invoice, error)
	ForQuotation(ctx context.Context, quotationID uuid.UUID) (invoice.Invoice, error)
}

// Service implements quotation use cases.
type Service struct {
	Store           Store
	Customers       CustomerChecker
	Invoices        InvoiceCreator
	Ledger          ledger.AccountLedger
	Numbers         document.Sequencer
	Locks           lock.Runner
	LockTTL         time.Duration
	Events          events.Emitter
	VATRate         float64
	DefaultValidity document.Term
	Now             func() time.Time
}

var localLocks lock.Local

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) engine() pricing.Engine {
	return document.KindQuotation.Engine(s.VATRate)
}

func (s *Service) emitter() events.Emitter {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

func (s *Service) validity() document.Term {
	if s.DefaultValidity.IsZero() {
		return document.Term{Days: 30}
	}
	return s.DefaultValidity
}

func (s *Service) withLock(ctx context.Context, id uuid.UUID, fn func(context.Context) error) error {
	var runner lock.Runner = &localLocks
	if s.Locks != nil {
		runner = s.Locks
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return runner.WithLock(ctx, lock.Key("quotation", id.String()), ttl, fn)
}

// Price computes rounded per-line and document totals for lines.
func (s *Service) Price(lines []document.QuotationLine) ([]Item, document.Totals) {
	engine := s.engine()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		t := pricing.RoundLine(engine.Line(l.PricingItem()))
		items = append(items, Item{QuotationLine: l, PriceExclVAT: t.PriceExclVAT, VAT: t.VAT, TotalIncl: t.TotalIncl})
	}
	return items, document.ComputeTotals(engine, lines)
}

// Create validates, prices and stores a draft quotation.
func (s *Service) Create(ctx context.Context, in CreateInput) (Quotation, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].Description = strings.TrimSpace(in.Items[i].Description)
	}
	if err := common.Validate(in); err != nil {
		return Quotation{}, err
	}
	if s.Customers != nil {
		if err := s.Customers.Exists(ctx, in.CustomerID); err != nil {
			return Quotation{}, err
		}
	}
	now := s.now()
	issued := now
	if in.IssuedAt != nil {
		issued = in.IssuedAt.UTC()
	}
	items, totals := s.Price(in.Items)
	if err := totals.Check(); err != nil {
		return Quotation{}, err
	}
	number, err := document.NextNumber(ctx, s.Numbers, document.KindQuotation, issued)
	if err != nil {
		return Quotation{}, fmt.Errorf("allocate quotation number: %w", err)
	}
	q := Quotation{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: in.CustomerID,
		Status:     document.QuotationDraft,
		VATRate:    s.engine().VATRate,
		Totals:     totals,
		Notes:      in.Notes,
		IssuedAt:   issued,
		ValidUntil: document.ParseTermOr(in.Validity, s.validity()).AddTo(issued),
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	out, err := s.Store.Create(ctx, q)
	if err != nil {
		return Quotation{}, err
	}
	obs.Inc(obs.DocumentsCreatedTotal, string(document.KindQuotation))
	_, _ = s.emitter().Emit(ctx, events.TopicQuotationCreated, out.ID, map[string]any{
		"number":        out.Number,
		"customerId":    out.CustomerID,
		"totalIncl":     out.TotalIncl,
		"totalDiscount": out.TotalDiscount,
	})
	return out, nil
}

// Get loads a quotation with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	return s.Store.Get(ctx, id)
}

// List returns a page of quotations without items.
func (s *Service) List(ctx context.Context, f Filter, page common.Page) ([]Quotation, int64, error) {
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

// ChangeStatus moves a quotation through its state machine. The converted
// status is reserved for Convert.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, next document.QuotationStatus) (Quotation, error) {
	if next == document.QuotationConverted {
		err := fmt.Errorf("%w: use convert to reach %s", document.ErrInvalidTransition, next)
		obs.Inc(obs.StatusTransitionsTotal, string(document.KindQuotation), obs.Result(err))
		return Quotation{}, err
	}
	var (
		out  Quotation
		from document.QuotationStatus
	)
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		q, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		from = q.Status
		if q.Status, err = q.Status.TransitionTo(next); err != nil {
			return err
		}
		q.UpdatedAt = s.now()
		out, err = s.Store.UpdateStatus(ctx, q)
		return err
	})
	obs.Inc(obs.StatusTransitionsTotal, string(document.KindQuotation), obs.Result(err))
	if err != nil {
		return Quotation{}, err
	}
	_, _ = s.emitter().Emit(ctx, events.TopicQuotationStatusChanged, out.ID, map[string]any{
		"number": out.Number,
		"from":   from,
		"to":     out.Status,
	})
	return out, nil
}

// ReplaceItems reprices a quotation while it is draft or sent.
func (s *Service) ReplaceItems(ctx context.Context, id uuid.UUID, lines []document.QuotationLine) (Quotation, error) {
	for i := range lines {
		lines[i].Description = strings.TrimSpace(lines[i].Description)
	}
	if err := common.Validate(struct {
		Items []document.QuotationLine `json:"items" validate:"required,min=1,dive"`
	}{lines}); err != nil {
		return Quotation{}, err
	}
	var out Quotation
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		q, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !q.Status.CanEditItems() {
			return fmt.Errorf("%w: quotation %s is %s", document.ErrDocumentLocked, q.Number, q.Status)
		}
		items, totals := s.Price(lines)
		if err := totals.Check(); err != nil {
			return err
		}
		q.Items, q.Totals = items, totals
		q.VATRate = s.engine().VATRate
		q.UpdatedAt = s.now()
		out, err = s.Store.ReplaceItems(ctx, q)
		return err
	})
	if err != nil {
		return Quotation{}, err
	}
	return out, nil
}

// Convert turns an approved quotation into an invoice, marks it converted
// and credits the ledger with the invoice total. When the ledger rejects the
// posting the conversion stands and the error wraps ErrLedgerPosting.
func (s *Service) Convert(ctx context.Context, id uuid.UUID, in ConvertInput) (Conversion, error) {
	if s.Invoices == nil {
		return Conversion{}, errors.New("quotation: invoice service not configured")
	}
	var result Conversion
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		q, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		next, err := q.Status.TransitionTo(document.QuotationConverted)
		if err != nil {
			return err
		}
		inv, err := s.invoiceFor(ctx, q, in)
		if err != nil {
			return err
		}
		q.Status = next
		q.ConvertedInvoiceID = &inv.ID
		q.UpdatedAt = s.now()
		if q, err = s.Store.UpdateStatus(ctx, q); err != nil {
			return err
		}
		result = Conversion{Quotation: q, Invoice: inv}
		return nil
	})
	obs.Inc(obs.StatusTransitionsTotal, string(document.KindQuotation), obs.Result(err))
	if err != nil {
		return Conversion{}, err
	}
	_, _ = s.emitter().Emit(ctx, events.TopicQuotationConverted, result.Quotation.ID, map[string]any{
		"number":        result.Quotation.Number,
		"invoiceId":     result.Invoice.ID,
		"invoiceNumber": result.Invoice.Number,
		"totalIncl":     result.Invoice.TotalIncl,
	})
	entry, err := s.postToLedger(ctx, result)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrLedgerPosting, err)
	}
	result.Entry = entry
	return result, nil
}

// invoiceFor returns the invoice an interrupted earlier conversion of q
// already issued, or creates it.
func (s *Service) invoiceFor(ctx context.Context, q Quotation, in ConvertInput) (invoice.Invoice, error) {
	existing, err := s.Invoices.ForQuotation(ctx, q.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, invoice.ErrNotFound) {
		return invoice.Invoice{}, fmt.Errorf("look up invoice: %w", err)
	}
	lines := make([]document.InvoiceLine, 0, len(q.Items))
	for _, it := range q.Items {
		lines = append(lines, it.InvoiceLine())
	}
	quotationID := q.ID
	inv, err := s.Invoices.Create(ctx, invoice.CreateInput{
		CustomerID:  q.CustomerID,
		Items:       lines,
		Term:        in.Term,
		Notes:       "Converted from " + q.Number,
		QuotationID: &quotationID,
	})
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) postToLedger(ctx context.Context, c Conversion) (*ledger.Entry, error) {
	if s.Ledger == nil {
		return nil, nil
	}
	amount := c.Invoice.TotalIncl
	if amount == 0 {
		return nil, nil
	}
	balance, err := s.Ledger.UpdateBalance(ctx, amount)
	if err != nil {
		return nil, err
	}
	entry, err := s.Ledger.RecordTransaction(ctx, ledger.Entry{
		Direction:    ledger.Credit,
		Amount:       amount,
		BalanceAfter: balance,
		Source:       "quotation",
		Reference:    c.Quotation.Number,
		Description:  "Quotation " + c.Quotation.Number + " converted to invoice " + c.Invoice.Number,
	})
	if err != nil {
		if _, undoErr := s.Ledger.UpdateBalance(ctx, -amount); undoErr != nil {
			return nil, errors.Join(err, fmt.Errorf("undo balance change: %w", undoErr))
		}
		return nil, err
	}
	return &entry, nil
}
