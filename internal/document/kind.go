package document

import (
	"fmt"

	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// Kind names a billing document type.
type Kind string

const (
	KindInvoice   Kind = "invoice"
	KindProforma  Kind = "proforma"
	KindQuotation Kind = "quotation"
)

// ParseKind validates a document kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindInvoice, KindProforma, KindQuotation:
		return k, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Convention is the pricing convention persisted documents of this kind were computed with.
// Invoices decompose the inclusive price; proformas and quotations discount first.
func (k Kind) Convention() pricing.Convention {
	if c, ok := pricing.ConventionFor(string(k)); ok {
		return c
	}
	return pricing.ConventionDiscountFirst
}

// Engine returns a pricing engine for this kind at the given VAT rate.
func (k Kind) Engine(vatRate float64) pricing.Engine {
	return pricing.NewEngine(vatRate, k.Convention())
}

// NumberPrefix is the prefix used in human readable document numbers.
func (k Kind) NumberPrefix() string {
	switch k {
	case KindInvoice:
		return "INV"
	case KindProforma:
		return "PRO"
	case KindQuotation:
		return "QUO"
	}
	return "DOC"
}

// FormatNumber renders e.g. INV-2024-0007.
func (k Kind) FormatNumber(year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%04d", k.NumberPrefix(), year, seq)
}
