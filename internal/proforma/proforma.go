package proforma

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
	// ErrNotFound is returned for unknown proformas.
	ErrNotFound = errors.New("proforma: not found")
	// ErrStatusChanged is returned when the stored status moved after it was read.
	ErrStatusChanged = errors.New("proforma: status changed concurrently")
)

// Item is a persisted proforma line with its rounded totals.
type Item struct {
	document.ProformaLine
	PriceExclVAT float64 `json:"priceExclVat"`
	VAT          float64 `json:"vat"`
	TotalIncl    float64 `json:"totalIncl"`
}

// Proforma is a pre-invoice priced with the discount-first convention.
type Proforma struct {
	ID         uuid.UUID               `json:"id"`
	Number     string                  `json:"number"`
	CustomerID uuid.UUID               `json:"customerId"`
	Status     document.ProformaStatus `json:"status"`
	VATRate    float64                 `json:"vatRate"`
	document.Totals
	Notes     string    `json:"notes,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	Items     []Item    `json:"items,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateInput is the payload for a new proforma.
type CreateInput struct {
	CustomerID uuid.UUID               `json:"customerId" validate:"required"`
	Items      []document.ProformaLine `json:"items" validate:"required,min=1,dive"`
	Validity   string                  `json:"validity"`
	Notes      string                  `json:"notes" validate:"max=2000"`
	IssuedAt   *time.Time              `json:"issuedAt"`
}

// Filter narrows proforma listings.
type Filter struct {
	Query      string
	Status     document.ProformaStatus
	CustomerID *uuid.UUID
}

// Store persists proformas.
type Store interface {
	Create(ctx context.Context, p Proforma) (Proforma, error)
	Get(ctx context.Context, id uuid.UUID) (Proforma, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Proforma, error)
	Count(ctx context.Context, f Filter) (int64, error)
	// ReplaceItems and UpdateStatus only apply while the stored status is
	// still the one read (p.Status and from respectively); otherwise they
	// return ErrStatusChanged.
	ReplaceItems(ctx context.Context, p Proforma) (Proforma, error)
	UpdateStatus(ctx context.Context, p Proforma, from document.ProformaStatus) (Proforma, error)
	// ExpireBefore moves expirable proformas whose expiry is before now to expired.
	ExpireBefore(ctx context.Context, now time.Time) ([]Proforma, error)
}

// CustomerChecker confirms a customer exists.
type CustomerChecker interface {
	Exists(ctx context.Context, id uuid.UUID) error
}

// Service implements proforma use cases.
type Service struct {
	Store           Store
	Customers       CustomerChecker
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
	return document.KindProforma.Engine(s.VATRate)
}

func (s *Service) emitter() events.Emitter {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

func (s *Service) validity() document.Term {
	if s.DefaultValidity.IsZero() {
		return document.Term{Days: 15}
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
	return runner.WithLock(ctx, lock.Key("proforma", id.String()), ttl, fn)
}

// Price computes rounded per-line and document totals for lines.
func (s *Service) Price(lines []document.ProformaLine) ([]Item, document.Totals) {
	engine := s.engine()
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		t := pricing.RoundLine(engine.Line(l.PricingItem()))
		items = append(items, Item{ProformaLine: l, PriceExclVAT: t.PriceExclVAT, VAT: t.VAT, TotalIncl: t.TotalIncl})
	}
	return items, document.ComputeTotals(engine, lines)
}

// Create validates, prices and stores a pending proforma.
func (s *Service) Create(ctx context.Context, in CreateInput) (Proforma, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	for i := range in.Items {
		in.Items[i].Description = strings.TrimSpace(in.Items[i].Description)
	}
	if err := common.Validate(in); err != nil {
		return Proforma{}, err
	}
	if s.Customers != nil {
		if err := s.Customers.Exists(ctx, in.CustomerID); err != nil {
			return Proforma{}, err
		}
	}
	now := s.now()
	issued := now
	if in.IssuedAt != nil {
		issued = in.IssuedAt.UTC()
	}
	items, totals := s.Price(in.Items)
	if err := totals.Check(); err != nil {
		return Proforma{}, err
	}
	number, err := document.NextNumber(ctx, s.Numbers, document.KindProforma, issued)
	if err != nil {
		return Proforma{}, fmt.Errorf("allocate proforma number: %w", err)
	}
	p := Proforma{
		ID:         uuid.New(),
		Number:     number,
		CustomerID: in.CustomerID,
		Status:     document.ProformaPending,
		VATRate:    s.engine().VATRate,
		Totals:     totals,
		Notes:      in.Notes,
		IssuedAt:   issued,
		ExpiresAt:  document.ParseTermOr(in.Validity, s.validity()).AddTo(issued),
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	out, err := s.Store.Create(ctx, p)
	if err != nil {
		return Proforma{}, err
	}
	obs.Inc(obs.DocumentsCreatedTotal, string(document.KindProforma))
	_, _ = s.emitter().Emit(ctx, events.TopicProformaCreated, out.ID, map[string]any{
		"number":        out.Number,
		"customerId":    out.CustomerID,
		"totalIncl":     out.TotalIncl,
		"totalDiscount": out.TotalDiscount,
		"expiresAt":     out.ExpiresAt,
	})
	return out, nil
}

// Get loads a proforma with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Proforma, error) {
	return s.Store.Get(ctx, id)
}

// List returns a page of proformas without items.
func (s *Service) List(ctx context.Context, f Filter, page common.Page) ([]Proforma, int64, error) {
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

// ChangeStatus moves a proforma through its state machine. Renewing an
// expired proforma restarts its validity window.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, next document.ProformaStatus) (Proforma, error) {
	var (
		out  Proforma
		from document.ProformaStatus
	)
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		p, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		from = p.Status
		to, err := p.Status.TransitionTo(next)
		if err != nil {
			return err
		}
		now := s.now()
		if from == document.ProformaExpired && to == document.ProformaPending {
			p.ExpiresAt = s.validity().AddTo(now)
		}
		p.Status = to
		p.UpdatedAt = now
		out, err = s.Store.UpdateStatus(ctx, p, from)
		return err
	})
	obs.Inc(obs.StatusTransitionsTotal, string(document.KindProforma), obs.Result(err))
	if err != nil {
		return Proforma{}, err
	}
	s.emitStatus(ctx, out, from)
	return out, nil
}

// ReplaceItems reprices a proforma while it is still pending or sent.
func (s *Service) ReplaceItems(ctx context.Context, id uuid.UUID, lines []document.ProformaLine) (Proforma, error) {
	for i := range lines {
		lines[i].Description = strings.TrimSpace(lines[i].Description)
	}
	if err := common.Validate(struct {
		Items []document.ProformaLine `json:"items" validate:"required,min=1,dive"`
	}{lines}); err != nil {
		return Proforma{}, err
	}
	var out Proforma
	err := s.withLock(ctx, id, func(ctx context.Context) error {
		p, err := s.Store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !p.Status.CanEditItems() {
			return fmt.Errorf("%w: proforma %s is %s", document.ErrDocumentLocked, p.Number, p.Status)
		}
		items, totals := s.Price(lines)
		if err := totals.Check(); err != nil {
			return err
		}
		p.Items, p.Totals = items, totals
		p.VATRate = s.engine().VATRate
		p.UpdatedAt = s.now()
		out, err = s.Store.ReplaceItems(ctx, p)
		return err
	})
	if err != nil {
		return Proforma{}, err
	}
	return out, nil
}

// ExpireOverdue expires every pending or sent proforma past its expiry and
// returns how many changed.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	expired, err := s.Store.ExpireBefore(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, p := range expired {
		obs.Inc(obs.StatusTransitionsTotal, string(document.KindProforma), "success")
		s.emitStatus(ctx, p, "")
	}
	return len(expired), nil
}

func (s *Service) emitStatus(ctx context.Context, p Proforma, from document.ProformaStatus) {
	payload := map[string]any{"number": p.Number, "to": p.Status}
	if from != "" {
		payload["from"] = from
	}
	_, _ = s.emitter().Emit(ctx, events.TopicProformaStatusChanged, p.ID, payload)
}
