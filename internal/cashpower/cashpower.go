package cashpower

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// DefaultTariff is the price of one kWh in the base currency.
const DefaultTariff = 182.0

// StatusCompleted marks a sale whose token was issued.
const StatusCompleted = "completed"

var (
	// ErrNotFound is returned for unknown transactions.
	ErrNotFound = errors.New("cashpower: not found")
	// ErrReversalFailed marks a failed sale whose debit could not be credited back.
	ErrReversalFailed = errors.New("cashpower: ledger reversal failed")
)

// Transaction is one prepaid electricity token sale.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	CustomerID  *uuid.UUID `json:"customerId,omitempty"`
	MeterNumber string     `json:"meterNumber"`
	Amount      float64    `json:"amount"`
	Token       string     `json:"token"`
	Units       float64    `json:"units"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// SellInput is the payload for a token sale. Meter numbers are 11 to 13 digits.
type SellInput struct {
	CustomerID  *uuid.UUID `json:"customerId"`
	MeterNumber string     `json:"meterNumber" validate:"required,number,min=11,max=13"`
	Amount      float64    `json:"amount" validate:"gt=0"`
}

// Filter narrows transaction listings.
type Filter struct {
	Meter      string
	CustomerID *uuid.UUID
	From, To   *time.Time
}

// Store persists sales.
type Store interface {
	Create(ctx context.Context, t Transaction) (Transaction, error)
	Get(ctx context.Context, id uuid.UUID) (Transaction, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]Transaction, error)
	Count(ctx context.Context, f Filter) (int64, error)
}

// TokenGenerator issues vending tokens.
type TokenGenerator interface {
	Token(ctx context.Context, meter string, units float64) (string, error)
}

// TokenFunc adapts a function to TokenGenerator.
type TokenFunc func(ctx context.Context, meter string, units float64) (string, error)

// Token implements TokenGenerator.
func (f TokenFunc) Token(ctx context.Context, meter string, units float64) (string, error) {
	return f(ctx, meter, units)
}

// RandomTokens issues 20 digit tokens grouped in fours.
var RandomTokens = TokenFunc(func(context.Context, string, float64) (string, error) {
	n, err := rand.Int(rand.Reader, new(big.Int).Exp(big.NewInt(10), big.NewInt(20), nil))
	if err != nil {
		return "", err
	}
	digits := fmt.Sprintf("%020s", n.String())
	groups := make([]string, 0, 5)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return strings.Join(groups, "-"), nil
})

// Service sells tokens against the account ledger.
type Service struct {
	Store  Store
	Ledger ledger.AccountLedger
	Tokens TokenGenerator
	Events events.Emitter
	Tariff float64
	Now    func() time.Time
	// Logger receives reversal failures; the request logger is used when nil.
	Logger *zerolog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) tariff() float64 {
	if s.Tariff <= 0 {
		return DefaultTariff
	}
	return s.Tariff
}

func (s *Service) tokens() TokenGenerator {
	if s.Tokens == nil {
		return RandomTokens
	}
	return s.Tokens
}

// Units converts an amount to kWh at the configured tariff.
func (s *Service) Units(amount float64) float64 {
	return pricing.Round2(amount / s.tariff())
}

// Sell debits the ledger, logs the debit, issues a token and stores the sale.
// Any failure after the debit credits it back.
func (s *Service) Sell(ctx context.Context, in SellInput) (Transaction, error) {
	tx, err := s.sell(ctx, in)
	obs.Inc(obs.CashpowerSalesTotal, obs.Result(err))
	return tx, err
}

func (s *Service) sell(ctx context.Context, in SellInput) (Transaction, error) {
	in.MeterNumber = strings.TrimSpace(in.MeterNumber)
	if err := common.Validate(in); err != nil {
		return Transaction{}, err
	}
	if s.Ledger == nil {
		return Transaction{}, errors.New("cashpower: ledger not configured")
	}
	amount := pricing.Round2(in.Amount)
	units := s.Units(amount)

	balance, err := s.Ledger.UpdateBalance(ctx, -amount)
	if err != nil {
		return Transaction{}, err
	}
	debit := ledger.Entry{
		Direction:    ledger.Debit,
		Amount:       amount,
		BalanceAfter: balance,
		Source:       "cashpower",
		Reference:    in.MeterNumber,
		Description:  fmt.Sprintf("Cashpower %.2f kWh for meter %s", units, in.MeterNumber),
	}
	if _, err := s.Ledger.RecordTransaction(ctx, debit); err != nil {
		return Transaction{}, s.reverse(ctx, debit, false, fmt.Errorf("record ledger transaction: %w", err))
	}
	token, err := s.tokens().Token(ctx, in.MeterNumber, units)
	if err != nil {
		return Transaction{}, s.reverse(ctx, debit, true, fmt.Errorf("issue token: %w", err))
	}
	t, err := s.Store.Create(ctx, Transaction{
		ID:          uuid.New(),
		CustomerID:  in.CustomerID,
		MeterNumber: in.MeterNumber,
		Amount:      amount,
		Token:       token,
		Units:       units,
		Status:      StatusCompleted,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return Transaction{}, s.reverse(ctx, debit, true, err)
	}
	_, _ = s.emitter().Emit(ctx, events.TopicCashpowerSold, t.ID, map[string]any{
		"meterNumber": t.MeterNumber,
		"amount":      t.Amount,
		"units":       t.Units,
	})
	return t, nil
}

// reverse credits debit back after a failed sale. When the debit already
// reached the transaction log a matching credit entry is written too. A
// failed reversal is logged, counted and joined to cause.
func (s *Service) reverse(ctx context.Context, debit ledger.Entry, logged bool, cause error) error {
	balance, err := s.Ledger.UpdateBalance(ctx, debit.Amount)
	if err == nil && logged {
		_, err = s.Ledger.RecordTransaction(ctx, ledger.Entry{
			Direction:    ledger.Credit,
			Amount:       debit.Amount,
			BalanceAfter: balance,
			Source:       debit.Source,
			Reference:    debit.Reference,
			Description:  "Reversal: " + debit.Description,
		})
	}
	obs.Inc(obs.LedgerReversalsTotal, obs.Result(err))
	if err == nil {
		return cause
	}
	s.logger(ctx).Error().
		Err(err).
		AnErr("cause", cause).
		Float64("amount", debit.Amount).
		Str("meter", debit.Reference).
		Msg("cashpower ledger reversal failed")
	return errors.Join(cause, fmt.Errorf("%w: %w", ErrReversalFailed, err))
}

func (s *Service) logger(ctx context.Context) *zerolog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zerolog.Ctx(ctx)
}

func (s *Service) emitter() events.Emitter {
	if s.Events == nil {
		return events.Nop{}
	}
	return s.Events
}

// Get loads one sale.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Transaction, error) {
	return s.Store.Get(ctx, id)
}

// List returns a page of sales, newest first.
func (s *Service) List(ctx context.Context, f Filter, page common.Page) ([]Transaction, int64, error) {
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
