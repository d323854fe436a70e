package audit

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backoffice-api/internal/db"
)

// NewStore returns a Postgres backed Store.
func NewStore(conn db.DBTX) Store {
	return &pgStore{db: conn}
}

type pgStore struct {
	db db.DBTX
}

const auditColumns = `id, operator, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at`

func (s *pgStore) InsertAuditLog(ctx context.Context, e Entry) (Entry, error) {
	if s == nil || s.db == nil {
		return Entry{}, db.ErrUnavailable
	}
	row := s.db.QueryRow(ctx, `INSERT INTO audit_logs
  (operator, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES (NULLIF($1, ''), $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''), $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)
RETURNING `+auditColumns,
		e.Operator, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, []byte(e.Metadata))
	return scanEntry(row)
}

func (s *pgStore) ListAuditLogs(ctx context.Context, f Filter, limit, offset int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, db.ErrUnavailable
	}
	where := auditWhere(f)
	page, args := where.Page(db.ClampLimit(limit, 50, 200), max(offset, 0))
	rows, err := s.db.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs`+where.SQL()+` ORDER BY created_at DESC`+page, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *pgStore) CountAuditLogs(ctx context.Context, f Filter) (int64, error) {
	if s == nil || s.db == nil {
		return 0, db.ErrUnavailable
	}
	where := auditWhere(f)
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+where.SQL(), where.Args()...).Scan(&total)
	return total, err
}

func auditWhere(f Filter) *db.Where {
	w := &db.Where{}
	w.AddIf(f.ResourceType != "", "resource_type = ?", f.ResourceType)
	w.AddIf(f.ResourceID != "", "resource_id = ?", f.ResourceID)
	if f.From != nil {
		w.Add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.Add("created_at < ?", *f.To)
	}
	return w
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e                                                 Entry
		operator, resourceID, route, ip, ua, requestID *string
		metadata                                          []byte
	)
	if err := row.Scan(&e.ID, &operator, &e.Action, &e.ResourceType, &resourceID, &e.Method, &e.Path, &route, &e.Status, &ip, &ua, &requestID, &metadata, &e.CreatedAt); err != nil {
		return Entry{}, err
	}
	e.Operator = deref(operator)
	e.ResourceID = deref(resourceID)
	e.Route = deref(route)
	e.IP = deref(ip)
	e.UserAgent = deref(ua)
	e.RequestID = deref(requestID)
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
