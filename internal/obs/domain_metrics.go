package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// DocumentsCreatedTotal counts billing documents created, by kind.
	DocumentsCreatedTotal *prometheus.CounterVec
	// PaymentsRecordedTotal counts invoice payment updates by outcome.
	PaymentsRecordedTotal *prometheus.CounterVec
	// StatusTransitionsTotal counts document status changes by kind and outcome.
	StatusTransitionsTotal *prometheus.CounterVec
	// CashpowerSalesTotal counts prepaid electricity sales by outcome.
	CashpowerSalesTotal *prometheus.CounterVec
	// LedgerPostingsTotal counts ledger balance movements by direction.
	LedgerPostingsTotal *prometheus.CounterVec
	// JobRunsTotal counts background job executions by task type and outcome.
	JobRunsTotal *prometheus.CounterVec
	// AuditRecordsTotal counts audit log writes by outcome.
	AuditRecordsTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal counts outbound webhook attempts by outcome.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// LedgerReversalsTotal counts compensating ledger credits by outcome.
	LedgerReversalsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		DocumentsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_created_total",
			Help:      "Count of billing documents created.",
		}, []string{"kind"})
		PaymentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of invoice payment updates by outcome.",
		}, []string{"result"})
		StatusTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Count of document status transitions by outcome.",
		}, []string{"kind", "result"})
		CashpowerSalesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cashpower_sales_total",
			Help:      "Count of cashpower token sales by outcome.",
		}, []string{"result"})
		LedgerPostingsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_postings_total",
			Help:      "Count of account ledger postings by direction.",
		}, []string{"direction"})
		JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Count of background job runs by task type and outcome.",
		}, []string{"task", "result"})
		AuditRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_records_total",
			Help:      "Count of audit log writes by outcome.",
		}, []string{"result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of outbound webhook deliveries by outcome.",
		}, []string{"result"})
		LedgerReversalsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_reversals_total",
			Help:      "Count of compensating ledger credits after failed sales by outcome.",
		}, []string{"result"})

		for _, vec := range []**prometheus.CounterVec{
			&DocumentsCreatedTotal,
			&PaymentsRecordedTotal,
			&StatusTransitionsTotal,
			&CashpowerSalesTotal,
			&LedgerPostingsTotal,
			&JobRunsTotal,
			&AuditRecordsTotal,
			&WebhookDeliveriesTotal,
			&LedgerReversalsTotal,
		} {
			registerOrReuse(reg, vec)
		}
	})
}

// Inc increments vec with labels, ignoring collectors that were never registered.
func Inc(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// Result maps an error to the result label used by domain counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
