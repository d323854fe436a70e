package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// DefaultAccount is the reseller's float account.
const DefaultAccount = "main"

var (
	// ErrInsufficientBalance is returned when a debit would take the balance below zero.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInvalidAmount is returned for non-positive top-ups and zero postings.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// Direction tells whether a posting added to or took from the balance.
type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

// DirectionOf returns the direction of a signed balance change.
func DirectionOf(amount float64) Direction {
	if amount < 0 {
		return Debit
	}
	return Credit
}

// Entry is one line of the running transaction log.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	Direction    Direction `json:"direction"`
	Amount       float64   `json:"amount"`
	BalanceAfter float64   `json:"balanceAfter"`
	Source       string    `json:"source"`
	Reference    string    `json:"reference,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// AccountLedger is the port document services use to move money. Callers get
// it injected; nothing reaches the balance through shared state.
type AccountLedger interface {
	// UpdateBalance applies a signed change and returns the new balance.
	UpdateBalance(ctx context.Context, amount float64) (float64, error)
	// RecordTransaction appends entry to the transaction log.
	RecordTransaction(ctx context.Context, entry Entry) (Entry, error)
}

// Filter narrows transaction listings.
type Filter struct {
	Direction Direction
	Source    string
	From, To  *time.Time
}

// Store persists balances and the transaction log.
type Store interface {
	AdjustBalance(ctx context.Context, account string, delta float64, allowNegative bool) (float64, error)
	GetBalance(ctx context.Context, account string) (float64, error)
	InsertTransaction(ctx context.Context, account string, entry Entry) (Entry, error)
	ListTransactions(ctx context.Context, account string, f Filter, limit, offset int) ([]Entry, error)
	CountTransactions(ctx context.Context, account string, f Filter) (int64, error)
}

// Service implements AccountLedger over a Store for a single account.
type Service struct {
	Store         Store
	Account       string
	AllowNegative bool
	Now           func() time.Time
}

var _ AccountLedger = (*Service)(nil)

// NewService builds a ledger service for the default account.
func NewService(store Store) *Service {
	return &Service{Store: store, Account: DefaultAccount}
}

func (s *Service) account() string {
	if s.Account == "" {
		return DefaultAccount
	}
	return s.Account
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// UpdateBalance applies amount atomically. A debit that would overdraw the
// account fails with ErrInsufficientBalance and leaves the balance unchanged.
func (s *Service) UpdateBalance(ctx context.Context, amount float64) (float64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("ledger: store not configured")
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	balance, err := s.Store.AdjustBalance(ctx, s.account(), pricing.Round2(amount), s.AllowNegative)
	if err != nil {
		return 0, err
	}
	obs.Inc(obs.LedgerPostingsTotal, string(DirectionOf(amount)))
	return balance, nil
}

// RecordTransaction normalises and stores entry.
func (s *Service) RecordTransaction(ctx context.Context, entry Entry) (Entry, error) {
	if s == nil || s.Store == nil {
		return Entry{}, errors.New("ledger: store not configured")
	}
	if entry.Amount < 0 {
		entry.Amount = -entry.Amount
		if entry.Direction == "" {
			entry.Direction = Debit
		}
	}
	if entry.Direction == "" {
		entry.Direction = Credit
	}
	if entry.Direction != Credit && entry.Direction != Debit {
		return Entry{}, fmt.Errorf("ledger: unknown direction %q", entry.Direction)
	}
	entry.Amount = pricing.Round2(entry.Amount)
	entry.BalanceAfter = pricing.Round2(entry.BalanceAfter)
	entry.Source = strings.TrimSpace(entry.Source)
	if entry.Source == "" {
		entry.Source = "manual"
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	return s.Store.InsertTransaction(ctx, s.account(), entry)
}

// Post moves amount and records the matching entry in one call. When the
// entry cannot be stored the balance movement is undone.
func (s *Service) Post(ctx context.Context, amount float64, entry Entry) (Entry, error) {
	balance, err := s.UpdateBalance(ctx, amount)
	if err != nil {
		return Entry{}, err
	}
	entry.Direction = DirectionOf(amount)
	entry.Amount = math.Abs(amount)
	entry.BalanceAfter = balance
	recorded, err := s.RecordTransaction(ctx, entry)
	if err != nil {
		if _, undoErr := s.UpdateBalance(ctx, -amount); undoErr != nil {
			return Entry{}, errors.Join(err, fmt.Errorf("undo balance change: %w", undoErr))
		}
		return Entry{}, err
	}
	return recorded, nil
}

// Balance returns the current account balance.
func (s *Service) Balance(ctx context.Context) (float64, error) {
	if s == nil || s.Store == nil {
		return 0, errors.New("ledger: store not configured")
	}
	return s.Store.GetBalance(ctx, s.account())
}

// ListTransactions returns a page of entries, newest first, and the total count.
func (s *Service) ListTransactions(ctx context.Context, f Filter, limit, offset int) ([]Entry, int64, error) {
	if s == nil || s.Store == nil {
		return nil, 0, errors.New("ledger: store not configured")
	}
	items, err := s.Store.ListTransactions(ctx, s.account(), f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Store.CountTransactions(ctx, s.account(), f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// TopUp credits the account with a positive amount.
func (s *Service) TopUp(ctx context.Context, amount float64, reference, description string) (Entry, error) {
	if amount <= 0 {
		return Entry{}, ErrInvalidAmount
	}
	return s.Post(ctx, amount, Entry{Source: "topup", Reference: reference, Description: description})
}
