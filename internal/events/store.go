package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// Store persists events and lists them for the audit endpoint.
type Store interface {
	EventStore
	ListDomainEvents(ctx context.Context, topic string, aggregateID uuid.UUID, limit, offset int) ([]Event, error)
	CountDomainEvents(ctx context.Context, topic string, aggregateID uuid.UUID) (int64, error)
}

// NewStore returns a Postgres backed Store.
func NewStore(conn db.DBTX) Store {
	return &pgStore{db: conn}
}

type pgStore struct {
	db db.DBTX
}

func (s *pgStore) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	if s == nil || s.db == nil {
		return Event{}, db.ErrUnavailable
	}
	row := s.db.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3) RETURNING id, topic, aggregate_id, payload, occurred_at`, topic, aggregateID, payload)
	return scanEvent(row)
}

func (s *pgStore) ListDomainEvents(ctx context.Context, topic string, aggregateID uuid.UUID, limit, offset int) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, db.ErrUnavailable
	}
	where := eventWhere(topic, aggregateID)
	page, args := where.Page(db.ClampLimit(limit, 50, 200), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT id, topic, aggregate_id, payload, occurred_at FROM domain_events`+where.SQL()+` ORDER BY occurred_at DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *pgStore) CountDomainEvents(ctx context.Context, topic string, aggregateID uuid.UUID) (int64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	where := eventWhere(topic, aggregateID)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM domain_events`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func eventWhere(topic string, aggregateID uuid.UUID) *db.Where {
	w := &db.Where{}
	topic = strings.TrimSpace(topic)
	w.AddIf(topic != "", "topic = ?", topic)
	w.AddIf(aggregateID != uuid.Nil, "aggregate_id = ?", aggregateID)
	return w
}

func scanEvent(row pgx.Row) (Event, error) {
	var ev Event
	var payload []byte
	if err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt); err != nil {
		return Event{}, err
	}
	ev.Payload = payload
	return ev, nil
}
