package events

// Topic constants for domain events emitted by the back office.
const (
	TopicInvoiceCreated         = "invoice.created"
	TopicInvoicePaymentRecorded = "invoice.payment_recorded"
	TopicInvoiceItemsReplaced   = "invoice.items_replaced"
	TopicProformaCreated        = "proforma.created"
	TopicProformaStatusChanged  = "proforma.status_changed"
	TopicQuotationCreated       = "quotation.created"
	TopicQuotationStatusChanged = "quotation.status_changed"
	TopicQuotationConverted     = "quotation.converted"
	TopicCashpowerSold          = "cashpower.sold"
	TopicLedgerToppedUp         = "ledger.topped_up"
)

// DefaultTopics returns every topic the services emit.
func DefaultTopics() []string {
	return []string{
		TopicInvoiceCreated,
		TopicInvoicePaymentRecorded,
		TopicInvoiceItemsReplaced,
		TopicProformaCreated,
		TopicProformaStatusChanged,
		TopicQuotationCreated,
		TopicQuotationStatusChanged,
		TopicQuotationConverted,
		TopicCashpowerSold,
		TopicLedgerToppedUp,
	}
}

// AffectsTotals reports whether an event changes money or document counts.
func AffectsTotals(topic string) bool {
	for _, t := range DefaultTopics() {
		if t == topic {
			return true
		}
	}
	return false
}
