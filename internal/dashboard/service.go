package dashboard

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backoffice-api/internal/cache"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// Range bounds a summary: From inclusive, To exclusive.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// StatusRow is one aggregated (kind, status) bucket as read from storage.
type StatusRow struct {
	Kind      string
	Status    string
	Count     int64
	TotalIncl float64
}

// Bucket aggregates documents sharing a status.
type Bucket struct {
	Count     int64   `json:"count"`
	TotalIncl float64 `json:"totalIncl"`
}

// KindSummary aggregates one document kind.
type KindSummary struct {
	Kind      string            `json:"kind"`
	Count     int64             `json:"count"`
	TotalIncl float64           `json:"totalIncl"`
	ByStatus  map[string]Bucket `json:"byStatus"`
}

// CashpowerVolume totals token sales.
type CashpowerVolume struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
	Units  float64 `json:"units"`
}

// Summary is the dashboard payload.
type Summary struct {
	Range         Range           `json:"range"`
	Documents     []KindSummary   `json:"documents"`
	Receivables   float64         `json:"receivables"`
	Cashpower     CashpowerVolume `json:"cashpower"`
	LedgerBalance float64         `json:"ledgerBalance"`
	Currency      string          `json:"currency"`
}

// Querier reads the aggregates a summary is built from.
type Querier interface {
	DocumentBuckets(ctx context.Context, r Range) ([]StatusRow, error)
	Receivables(ctx context.Context, r Range) (float64, error)
	CashpowerVolume(ctx context.Context, r Range) (CashpowerVolume, error)
}

// BalanceReader reports the current ledger balance.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}

// Kinds lists the document kinds in the order they are reported.
var Kinds = []string{"invoice", "proforma", "quotation"}

// Service builds cached dashboard summaries.
type Service struct {
	Q            Querier
	Ledger       BalanceReader
	Cache        *cache.JSON
	Currency     string
	DefaultRange int
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// LastDays returns the range ending now and spanning days days.
func (s *Service) LastDays(days int) Range {
	if days <= 0 {
		days = s.DefaultRange
	}
	if days <= 0 {
		days = 30
	}
	to := s.now()
	return Range{From: to.AddDate(0, 0, -days), To: to}
}

// Summary returns aggregates for r, served from the cache while it is fresh.
func (s *Service) Summary(ctx context.Context, r Range) (Summary, error) {
	if s == nil || s.Q == nil {
		return Summary{}, errors.New("dashboard service not configured")
	}
	name := r.From.UTC().Format(time.RFC3339) + "_" + r.To.UTC().Format(time.RFC3339)
	return cache.Remember(ctx, s.Cache, cache.NSDashboard, name, func(ctx context.Context) (Summary, error) {
		return s.build(ctx, r)
	})
}

func (s *Service) build(ctx context.Context, r Range) (Summary, error) {
	rows, err := s.Q.DocumentBuckets(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	receivables, err := s.Q.Receivables(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	volume, err := s.Q.CashpowerVolume(ctx, r)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{
		Range:       r,
		Documents:   groupByKind(rows),
		Receivables: pricing.Round2(receivables),
		Cashpower: CashpowerVolume{
			Count:  volume.Count,
			Amount: pricing.Round2(volume.Amount),
			Units:  pricing.Round2(volume.Units),
		},
		Currency: s.Currency,
	}
	if s.Ledger != nil {
		balance, err := s.Ledger.Balance(ctx)
		if err != nil {
			return Summary{}, err
		}
		out.LedgerBalance = pricing.Round2(balance)
	}
	return out, nil
}

func groupByKind(rows []StatusRow) []KindSummary {
	byKind := make(map[string]*KindSummary, len(Kinds))
	out := make([]KindSummary, len(Kinds))
	for i, kind := range Kinds {
		out[i] = KindSummary{Kind: kind, ByStatus: map[string]Bucket{}}
		byKind[kind] = &out[i]
	}
	for _, row := range rows {
		ks, ok := byKind[row.Kind]
		if !ok {
			continue
		}
		b := ks.ByStatus[row.Status]
		b.Count += row.Count
		b.TotalIncl = pricing.Round2(b.TotalIncl + row.TotalIncl)
		ks.ByStatus[row.Status] = b
		ks.Count += row.Count
		ks.TotalIncl = pricing.Round2(ks.TotalIncl + row.TotalIncl)
	}
	return out
}

// Invalidator drops cached summaries whenever an event touches totals.
func (s *Service) Invalidator() events.Notifier {
	return events.NotifierFunc(func(ctx context.Context, ev events.Event) error {
		if !events.AffectsTotals(ev.Topic) {
			return nil
		}
		return s.Cache.Invalidate(ctx, cache.NSDashboard)
	})
}
