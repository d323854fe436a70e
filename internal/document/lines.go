package document

import (
	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

// InvoiceLine is an invoice item. Invoices carry no discount.
type InvoiceLine struct {
	Description string  `json:"description" validate:"required,max=500"`
	Quantity    int     `json:"quantity" validate:"gte=1"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

// NewInvoiceLine validates and builds an invoice line.
func NewInvoiceLine(description string, quantity int, unitPrice float64) (InvoiceLine, error) {
	l := InvoiceLine{Description: description, Quantity: quantity, UnitPrice: unitPrice}
	if err := common.Validate(l); err != nil {
		return InvoiceLine{}, err
	}
	return l, nil
}

// PricingItem converts the line for the totals engine.
func (l InvoiceLine) PricingItem() pricing.LineItem {
	return pricing.LineItem{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
}

// QuotationLine is a quotation item with a percentage discount.
type QuotationLine struct {
	Description     string  `json:"description" validate:"required,max=500"`
	Quantity        int     `json:"quantity" validate:"gte=1"`
	UnitPrice       float64 `json:"unitPrice" validate:"gte=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
}

// NewQuotationLine validates and builds a quotation line.
func NewQuotationLine(description string, quantity int, unitPrice, discountPercent float64) (QuotationLine, error) {
	l := QuotationLine{Description: description, Quantity: quantity, UnitPrice: unitPrice, DiscountPercent: discountPercent}
	if err := common.Validate(l); err != nil {
		return QuotationLine{}, err
	}
	return l, nil
}

// PricingItem converts the line for the totals engine.
func (l QuotationLine) PricingItem() pricing.LineItem {
	return pricing.LineItem{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice, DiscountPercent: l.DiscountPercent}
}

// InvoiceLine drops the discount by folding it into the unit price, which
// keeps the converted invoice total equal to the quotation total.
func (l QuotationLine) InvoiceLine() InvoiceLine {
	return InvoiceLine{
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice * (1 - l.DiscountPercent/100),
	}
}

// ProformaLine is a proforma item with a percentage discount.
type ProformaLine struct {
	Description     string  `json:"description" validate:"required,max=500"`
	Quantity        int     `json:"quantity" validate:"gte=1"`
	UnitPrice       float64 `json:"unitPrice" validate:"gte=0"`
	DiscountPercent float64 `json:"discountPercent" validate:"gte=0,lte=100"`
}

// NewProformaLine validates and builds a proforma line.
func NewProformaLine(description string, quantity int, unitPrice, discountPercent float64) (ProformaLine, error) {
	l := ProformaLine{Description: description, Quantity: quantity, UnitPrice: unitPrice, DiscountPercent: discountPercent}
	if err := common.Validate(l); err != nil {
		return ProformaLine{}, err
	}
	return l, nil
}

// PricingItem converts the line for the totals engine.
func (l ProformaLine) PricingItem() pricing.LineItem {
	return pricing.LineItem{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice, DiscountPercent: l.DiscountPercent}
}

// Priceable is implemented by every typed line.
type Priceable interface {
	PricingItem() pricing.LineItem
}

// PricingItems converts typed lines for the totals engine.
func PricingItems[L Priceable](lines []L) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.PricingItem())
	}
	return out
}

// Totals is the rounded, persisted view of a document's amounts.
type Totals struct {
	TotalExcl     float64 `json:"totalExcl"`
	Tax           float64 `json:"tax"`
	TotalIncl     float64 `json:"totalIncl"`
	TotalDiscount float64 `json:"totalDiscount,omitempty"`
	AmountInWords string  `json:"amountInWords"`
}

// ComputeTotals prices lines with engine and rounds the result for storage.
// The amount in words is taken from the unrounded inclusive total.
func ComputeTotals[L Priceable](engine pricing.Engine, lines []L) Totals {
	raw := engine.Document(PricingItems(lines))
	rounded := pricing.RoundDocument(raw)
	if pricing.CheckDocument(raw) != nil {
		return Totals{TotalExcl: rounded.TotalExcl, Tax: rounded.Tax, TotalIncl: rounded.TotalIncl, TotalDiscount: rounded.TotalDiscount}
	}
	return Totals{
		TotalExcl:     rounded.TotalExcl,
		Tax:           rounded.Tax,
		TotalIncl:     rounded.TotalIncl,
		TotalDiscount: rounded.TotalDiscount,
		AmountInWords: pricing.AmountToWords(pricing.WholeUnits(raw.TotalIncl)),
	}
}

// Check reports pricing.ErrAmountOutOfRange when any total cannot be stored.
func (t Totals) Check() error {
	return pricing.CheckDocument(pricing.DocumentTotals{
		TotalExcl:     t.TotalExcl,
		Tax:           t.Tax,
		TotalIncl:     t.TotalIncl,
		TotalDiscount: t.TotalDiscount,
	})
}
