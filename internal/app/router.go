package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backoffice-api/internal/audit"
	"github.com/noah-isme/backoffice-api/internal/cashpower"
	"github.com/noah-isme/backoffice-api/internal/catalog"
	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/dashboard"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/health"
	"github.com/noah-isme/backoffice-api/internal/invoice"
	"github.com/noah-isme/backoffice-api/internal/jobs"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/pricing"
	"github.com/noah-isme/backoffice-api/internal/proforma"
	"github.com/noah-isme/backoffice-api/internal/quotation"
	"github.com/noah-isme/backoffice-api/internal/ratelimit"
	"github.com/noah-isme/backoffice-api/internal/security"
)

// RouterDeps carries what the HTTP layer needs beyond configuration.
type RouterDeps struct {
	Services *Services
	Redis    *redis.Client
	Health   health.Checker
	Limiter  ratelimit.Limiter
	Jobs     jobs.Inspector
	Metrics  *obs.HTTPMetrics
	Logger   zerolog.Logger
}

// NewRouter mounts the /api/v1 surface plus health, metrics and pprof.
func NewRouter(cfg *config.Config, deps RouterDeps) http.Handler {
	svc := deps.Services
	if svc == nil {
		svc = &Services{}
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	customerHandler := &customer.Handler{Svc: svc.Customers}
	catalogHandler := &catalog.Handler{Svc: svc.Catalog}
	invoiceHandler := &invoice.Handler{Svc: svc.Invoices}
	proformaHandler := &proforma.Handler{Svc: svc.Proformas}
	quotationHandler := &quotation.Handler{Svc: svc.Quotations}
	cashpowerHandler := &cashpower.Handler{Svc: svc.Cashpower}
	ledgerHandler := &ledger.Handler{Svc: svc.Ledger, Events: eventsOrNop(svc.Events), Currency: cfg.CurrencyCode}
	dashboardHandler := &dashboard.Handler{Svc: svc.Dashboard}
	eventsHandler := &events.Handler{Store: svc.EventStore}
	pricingHandler := &pricing.Handler{VATRate: cfg.VATRate}
	jobsHandler := &jobs.AdminHandler{Inspector: deps.Jobs}
	auditHandler := &audit.Handler{}
	if svc.Audit != nil {
		auditHandler.Store = svc.Audit.Store
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.Tracing("backoffice-api"))
	}
	if deps.Metrics != nil {
		r.Use(obs.HTTPObs{Metrics: deps.Metrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: deps.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Idempotency-Key"},
		ExposedHeaders: []string{"X-Total-Count", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production", HSTSMaxAge: 31536000, NoStore: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:      deps.Health,
		DBTimeout:    cfg.HealthDBTimeout,
		RedisTimeout: cfg.HealthRedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		if deps.Limiter != nil {
			v.Use(ratelimit.Handler{
				Limiter: deps.Limiter,
				OnError: func(err error) { deps.Logger.Warn().Err(err).Msg("rate limiter unavailable") },
			}.Middleware)
		}
		v.Use(audit.HTTPRecorder{
			Service: svc.Audit,
			OnError: func(err error) { deps.Logger.Error().Err(err).Msg("record audit log") },
		}.Middleware)

		v.Route("/customers", func(c chi.Router) {
			c.Get("/", customerHandler.List)
			c.With(idem.Middleware).Post("/", customerHandler.Create)
			c.Get("/{id}", customerHandler.Get)
			c.Put("/{id}", customerHandler.Update)
			c.Delete("/{id}", customerHandler.Delete)
		})

		v.Route("/products", func(p chi.Router) {
			p.Get("/", catalogHandler.ListProducts)
			p.Get("/categories", catalogHandler.ListCategories)
			p.With(idem.Middleware).Post("/", catalogHandler.CreateProduct)
			p.Get("/{id}", catalogHandler.GetProduct)
			p.Put("/{id}", catalogHandler.UpdateProduct)
			p.Delete("/{id}", catalogHandler.DeleteProduct)
		})

		v.Route("/stock-items", func(s chi.Router) {
			s.Get("/", catalogHandler.ListStock)
			s.With(idem.Middleware).Post("/", catalogHandler.CreateStock)
			s.Get("/{id}", catalogHandler.GetStock)
			s.Put("/{id}", catalogHandler.UpdateStock)
			s.Delete("/{id}", catalogHandler.DeleteStock)
			s.With(idem.Middleware).Post("/{id}/adjust", catalogHandler.AdjustStock)
		})

		v.Route("/invoices", func(i chi.Router) {
			i.Get("/", invoiceHandler.List)
			i.With(idem.Middleware).Post("/", invoiceHandler.Create)
			i.Get("/{id}", invoiceHandler.Get)
			i.Put("/{id}/items", invoiceHandler.ReplaceItems)
			i.Get("/{id}/payments", invoiceHandler.Payments)
			i.With(idem.Middleware).Post("/{id}/payments", invoiceHandler.RecordPayment)
			i.Put("/{id}/paid-amount", invoiceHandler.SetPaidAmount)
		})

		v.Route("/proformas", func(p chi.Router) {
			p.Get("/", proformaHandler.List)
			p.With(idem.Middleware).Post("/", proformaHandler.Create)
			p.Post("/expire", proformaHandler.Expire)
			p.Get("/{id}", proformaHandler.Get)
			p.Patch("/{id}/status", proformaHandler.ChangeStatus)
			p.Put("/{id}/items", proformaHandler.ReplaceItems)
		})

		v.Route("/quotations", func(q chi.Router) {
			q.Get("/", quotationHandler.List)
			q.With(idem.Middleware).Post("/", quotationHandler.Create)
			q.Get("/{id}", quotationHandler.Get)
			q.Patch("/{id}/status", quotationHandler.ChangeStatus)
			q.Put("/{id}/items", quotationHandler.ReplaceItems)
			q.With(idem.Middleware).Post("/{id}/convert", quotationHandler.Convert)
		})

		v.Route("/cashpower/transactions", func(c chi.Router) {
			c.Get("/", cashpowerHandler.List)
			c.With(idem.Middleware).Post("/", cashpowerHandler.Sell)
			c.Get("/{id}", cashpowerHandler.Get)
		})

		v.Route("/ledger", func(l chi.Router) {
			l.Get("/balance", ledgerHandler.Balance)
			l.Get("/transactions", ledgerHandler.Transactions)
			l.With(idem.Middleware).Post("/topups", ledgerHandler.TopUp)
		})

		v.Get("/dashboard/summary", dashboardHandler.Summary)
		v.Post("/pricing/quote", pricingHandler.Quote)
		v.Get("/pricing/words", pricingHandler.Words)
		v.Get("/events", eventsHandler.List)
		v.Get("/audit-logs", auditHandler.List)

		v.Route("/jobs/queues", func(j chi.Router) {
			j.Get("/", jobsHandler.Queues)
			j.Get("/{queue}/archived", jobsHandler.Archived)
			j.Post("/{queue}/archived/replay", jobsHandler.Replay)
		})
	})

	return r
}

func eventsOrNop(bus *events.Bus) events.Emitter {
	if bus == nil {
		return events.Nop{}
	}
	return bus
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
