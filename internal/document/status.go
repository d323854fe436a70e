package document

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a status change is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDocumentLocked is returned when line items or payments are changed on a finalized document.
	ErrDocumentLocked = errors.New("document is locked")
	// ErrUnknownStatus is returned when parsing a status outside the closed set.
	ErrUnknownStatus = errors.New("unknown status")
)

// InvoiceStatus is derived from the paid amount, never set directly.
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// DeriveInvoiceStatus maps a paid amount against the invoice total.
func DeriveInvoiceStatus(paid, total float64) InvoiceStatus {
	switch {
	case paid <= 0:
		return InvoiceUnpaid
	case paid >= total:
		return InvoicePaid
	default:
		return InvoicePartial
	}
}

// ParseInvoiceStatus validates a status filter value.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(s); st {
	case InvoiceUnpaid, InvoicePartial, InvoicePaid:
		return st, nil
	}
	return "", fmt.Errorf("%w: invoice %q", ErrUnknownStatus, s)
}

// CanEditItems reports whether line items may still be replaced.
func (s InvoiceStatus) CanEditItems() bool { return s == InvoiceUnpaid }

// ProformaStatus is changed by operators through TransitionTo.
type ProformaStatus string

const (
	ProformaPending   ProformaStatus = "pending"
	ProformaSent      ProformaStatus = "sent"
	ProformaPaid      ProformaStatus = "paid"
	ProformaExpired   ProformaStatus = "expired"
	ProformaCancelled ProformaStatus = "cancelled"
)

var proformaTransitions = map[ProformaStatus][]ProformaStatus{
	ProformaPending: {ProformaSent, ProformaPaid, ProformaExpired, ProformaCancelled},
	ProformaSent:    {ProformaPaid, ProformaExpired, ProformaCancelled},
	ProformaExpired: {ProformaPending},
}

// ParseProformaStatus validates a status string.
func ParseProformaStatus(s string) (ProformaStatus, error) {
	switch st := ProformaStatus(s); st {
	case ProformaPending, ProformaSent, ProformaPaid, ProformaExpired, ProformaCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: proforma %q", ErrUnknownStatus, s)
}

// TransitionTo returns next when the move is legal.
func (s ProformaStatus) TransitionTo(next ProformaStatus) (ProformaStatus, error) {
	for _, allowed := range proformaTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: proforma %s -> %s", ErrInvalidTransition, s, next)
}

// Terminal reports whether no further transition exists.
func (s ProformaStatus) Terminal() bool { return len(proformaTransitions[s]) == 0 }

// CanEditItems reports whether line items may still be replaced.
func (s ProformaStatus) CanEditItems() bool {
	return s == ProformaPending || s == ProformaSent
}

// Expirable reports whether the expiry sweep may move the proforma to expired.
func (s ProformaStatus) Expirable() bool {
	return s == ProformaPending || s == ProformaSent
}

// QuotationStatus moves from draft to converted; converted is only reached by conversion.
type QuotationStatus string

const (
	QuotationDraft     QuotationStatus = "draft"
	QuotationSent      QuotationStatus = "sent"
	QuotationApproved  QuotationStatus = "approved"
	QuotationConverted QuotationStatus = "converted"
)

var quotationTransitions = map[QuotationStatus][]QuotationStatus{
	QuotationDraft:    {QuotationSent, QuotationApproved},
	QuotationSent:     {QuotationDraft, QuotationApproved},
	QuotationApproved: {QuotationConverted},
}

// ParseQuotationStatus validates a status string.
func ParseQuotationStatus(s string) (QuotationStatus, error) {
	switch st := QuotationStatus(s); st {
	case QuotationDraft, QuotationSent, QuotationApproved, QuotationConverted:
		return st, nil
	}
	return "", fmt.Errorf("%w: quotation %q", ErrUnknownStatus, s)
}

// TransitionTo returns next when the move is legal.
func (s QuotationStatus) TransitionTo(next QuotationStatus) (QuotationStatus, error) {
	for _, allowed := range quotationTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}
	return s, fmt.Errorf("%w: quotation %s -> %s", ErrInvalidTransition, s, next)
}

// Terminal reports whether no further transition exists.
func (s QuotationStatus) Terminal() bool { return len(quotationTransitions[s]) == 0 }

// CanEditItems reports whether line items may still be replaced.
func (s QuotationStatus) CanEditItems() bool {
	return s == QuotationDraft || s == QuotationSent
}
