package app

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backoffice-api/internal/audit"
	"github.com/noah-isme/backoffice-api/internal/cache"
	"github.com/noah-isme/backoffice-api/internal/cashpower"
	"github.com/noah-isme/backoffice-api/internal/catalog"
	"github.com/noah-isme/backoffice-api/internal/config"
	"github.com/noah-isme/backoffice-api/internal/customer"
	"github.com/noah-isme/backoffice-api/internal/dashboard"
	"github.com/noah-isme/backoffice-api/internal/document"
	"github.com/noah-isme/backoffice-api/internal/events"
	"github.com/noah-isme/backoffice-api/internal/invoice"
	"github.com/noah-isme/backoffice-api/internal/jobs"
	"github.com/noah-isme/backoffice-api/internal/ledger"
	"github.com/noah-isme/backoffice-api/internal/lock"
	"github.com/noah-isme/backoffice-api/internal/obs"
	"github.com/noah-isme/backoffice-api/internal/proforma"
	"github.com/noah-isme/backoffice-api/internal/quotation"
	"github.com/noah-isme/backoffice-api/internal/resilience"
)

// Services is the wired domain layer.
type Services struct {
	Customers  *customer.Service
	Catalog    *catalog.Service
	Invoices   *invoice.Service
	Proformas  *proforma.Service
	Quotations *quotation.Service
	Cashpower  *cashpower.Service
	Ledger     *ledger.Service
	Dashboard  *dashboard.Service
	Events     *events.Bus
	EventStore events.Store
	Audit      *audit.Service
}

// NewServices wires every domain service over infra.
func NewServices(cfg *config.Config, infra *Infra) (*Services, error) {
	cacheKeys := "bo:"
	jsonCache := cache.New(infra.Redis, cfg.CatalogCacheTTL, cacheKeys)
	locks := lock.Locker{R: infra.Redis, RetryBackoff: cfg.LockRetryBackoff, MaxWait: cfg.LockMaxWait}
	numbers := document.NewSequencer(infra.DB)

	ledgerSvc := ledger.NewService(ledger.NewStore(infra.DB))
	ledgerSvc.Account = cfg.LedgerAccount

	dashboardSvc := &dashboard.Service{
		Q:            dashboard.NewStore(infra.DB),
		Ledger:       ledgerSvc,
		Cache:        cache.New(infra.Redis, cfg.DashboardCacheTTL, cacheKeys),
		Currency:     cfg.CurrencyCode,
		DefaultRange: cfg.DashboardDefaultRange,
	}

	eventStore := events.NewStore(infra.DB)
	bus := &events.Bus{
		Store:     eventStore,
		Scheduler: jobs.Scheduler{Client: infra.Tasks},
		Notifiers: []events.Notifier{dashboardSvc.Invalidator()},
	}

	customers := &customer.Service{Store: customer.NewStore(infra.DB)}
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Store: catalog.NewStore(infra.DB), Cache: jsonCache})
	if err != nil {
		return nil, err
	}

	invoices := &invoice.Service{
		Store:       invoice.NewStore(infra.DB),
		Customers:   customers,
		Numbers:     numbers,
		Locks:       locks,
		LockTTL:     cfg.LockTTL,
		Events:      bus,
		VATRate:     cfg.VATRate,
		DefaultTerm: cfg.InvoiceDefaultTerm,
	}
	proformas := &proforma.Service{
		Store:           proforma.NewStore(infra.DB),
		Customers:       customers,
		Numbers:         numbers,
		Locks:           locks,
		LockTTL:         cfg.LockTTL,
		Events:          bus,
		VATRate:         cfg.VATRate,
		DefaultValidity: cfg.ProformaDefaultValidity,
	}
	quotations := &quotation.Service{
		Store:           quotation.NewStore(infra.DB),
		Customers:       customers,
		Invoices:        invoices,
		Ledger:          ledgerSvc,
		Numbers:         numbers,
		Locks:           locks,
		LockTTL:         cfg.LockTTL,
		Events:          bus,
		VATRate:         cfg.VATRate,
		DefaultValidity: cfg.QuotationDefaultValidity,
	}
	cashpowerLog := obs.Component(infra.Logger, "cashpower")
	cashpowerSvc := &cashpower.Service{
		Store:  cashpower.NewStore(infra.DB),
		Ledger: ledgerSvc,
		Tokens: tokenSource(cfg),
		Events: bus,
		Tariff: cfg.CashpowerTariff,
		Logger: &cashpowerLog,
	}

	return &Services{
		Customers:  customers,
		Catalog:    catalogSvc,
		Invoices:   invoices,
		Proformas:  proformas,
		Quotations: quotations,
		Cashpower:  cashpowerSvc,
		Ledger:     ledgerSvc,
		Dashboard:  dashboardSvc,
		Events:     bus,
		EventStore: eventStore,
		Audit:      &audit.Service{Store: audit.NewStore(infra.DB), Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate},
	}, nil
}

// tokenSource returns the vendor client when one is configured, local tokens otherwise.
func tokenSource(cfg *config.Config) cashpower.TokenGenerator {
	if cfg.CashpowerVendorURL == "" {
		return cashpower.RandomTokens
	}
	return cashpower.VendorTokens{
		URL:    cfg.CashpowerVendorURL,
		APIKey: cfg.CashpowerVendorAPIKey,
		HTTP: resilience.HTTPClient{
			Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
			Breaker:     resilience.NewBreaker("cashpower-vendor", cfg.CircuitVendorMinRequests, cfg.CircuitVendorFailureRate, cfg.CircuitVendorOpenFor),
			MaxAttempts: cfg.CashpowerVendorAttempts,
			Timeout:     cfg.CashpowerVendorTimeout,
			Jitter:      0.2,
		},
	}
}
