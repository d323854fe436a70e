package document

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// Sequencer hands out increasing per-kind, per-year document counters.
// A number is consumed even when the document insert that follows fails, so
// services allocate it only after validation and pricing have passed.
type Sequencer interface {
	Next(ctx context.Context, kind Kind, year int) (int64, error)
}

// NextNumber allocates the next human readable number for kind, e.g. INV-2024-0007.
func NextNumber(ctx context.Context, seq Sequencer, kind Kind, at time.Time) (string, error) {
	year := at.UTC().Year()
	n, err := seq.Next(ctx, kind, year)
	if err != nil {
		return "", err
	}
	return kind.FormatNumber(year, n), nil
}

// NewSequencer returns a Postgres backed Sequencer over document_sequences.
func NewSequencer(conn db.DBTX) Sequencer {
	return pgSequencer{db: conn}
}

type pgSequencer struct {
	db db.DBTX
}

func (s pgSequencer) Next(ctx context.Context, kind Kind, year int) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `INSERT INTO document_sequences (kind, year, last_value) VALUES ($1, $2, 1)
ON CONFLICT (kind, year) DO UPDATE SET last_value = document_sequences.last_value + 1
RETURNING last_value`, string(kind), year).Scan(&n)
	return n, err
}

// LocalSequencer is an in-process Sequencer for tools and tests.
type LocalSequencer struct {
	mu   sync.Mutex
	last map[string]int64
}

// Next implements Sequencer.
func (s *LocalSequencer) Next(_ context.Context, kind Kind, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		s.last = map[string]int64{}
	}
	key := kind.FormatNumber(year, 0)
	s.last[key]++
	return s.last[key], nil
}
