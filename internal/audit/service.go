package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/obs"
)

// OperatorHeader carries the back-office operator name. It is a label, not an identity.
const OperatorHeader = "X-Operator"

// Entry is one recorded mutation.
type Entry struct {
	ID           uuid.UUID       `json:"id"`
	Operator     string          `json:"operator,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	Route        string          `json:"route,omitempty"`
	Status       int             `json:"status"`
	IP           string          `json:"ip,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Filter narrows List queries. Zero fields match everything.
type Filter struct {
	ResourceType string
	ResourceID   string
	From, To     *time.Time
}

// Store defines the database operations required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e Entry) (Entry, error)
	ListAuditLogs(ctx context.Context, f Filter, limit, offset int) ([]Entry, error)
	CountAuditLogs(ctx context.Context, f Filter) (int64, error)
}

// Service persists audit logs for mutating requests.
type Service struct {
	Store        Store
	Enabled      bool
	SamplingRate float64
}

// Record persists an audit entry for req when auditing is enabled.
func (s Service) Record(ctx context.Context, req *http.Request, status int, metadata []byte) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 && rand.Float64() > s.SamplingRate {
		return nil
	}
	if req == nil {
		return errors.New("audit: request is required")
	}
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	_, err := s.Store.InsertAuditLog(ctx, entryFor(req, status, metadata))
	obs.Inc(obs.AuditRecordsTotal, obs.Result(err))
	return err
}

func entryFor(req *http.Request, status int, metadata []byte) Entry {
	route := routeOf(req)
	if status == 0 {
		status = http.StatusOK
	}
	e := Entry{
		Operator:     strings.TrimSpace(req.Header.Get(OperatorHeader)),
		Action:       buildAction(req.Method, route),
		ResourceType: buildResource(route),
		Method:       req.Method,
		Path:         req.URL.Path,
		Route:        route,
		Status:       status,
		IP:           common.ClientIP(req),
		UserAgent:    strings.TrimSpace(req.UserAgent()),
		RequestID:    strings.TrimSpace(req.Header.Get("X-Request-ID")),
		Metadata:     toJSONB(metadata, req.URL.RawQuery),
	}
	if rc := chi.RouteContext(req.Context()); rc != nil {
		e.ResourceID = rc.URLParam("id")
	}
	return e
}

func routeOf(req *http.Request) string {
	if route := obs.RoutePattern(req); route != "" {
		return route
	}
	return strings.TrimSpace(req.URL.Path)
}

func buildAction(method, route string) string {
	if route == "" {
		route = "/"
	}
	return strings.ToUpper(strings.TrimSpace(method)) + " " + route
}

// buildResource turns /api/v1/invoices/{id}/payments into "invoices.payments".
func buildResource(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	if route == "" {
		return "unknown"
	}
	segments := strings.Split(route, "/")
	if len(segments) >= 2 && segments[0] == "api" && segments[1] == "v1" {
		segments = segments[2:]
	}
	kept := segments[:0]
	for _, seg := range segments {
		if seg == "" || strings.HasPrefix(seg, "{") {
			continue
		}
		kept = append(kept, seg)
	}
	if len(kept) == 0 {
		return "unknown"
	}
	return strings.Join(kept, ".")
}

func toJSONB(metadata []byte, query string) json.RawMessage {
	if len(metadata) > 0 {
		return metadata
	}
	if strings.TrimSpace(query) == "" {
		return nil
	}
	data, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil
	}
	return data
}
