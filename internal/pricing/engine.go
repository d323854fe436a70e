package pricing

// DefaultVATRate is the Rwandan standard VAT rate.
const DefaultVATRate = 0.18

// Convention selects how a document type turns VAT-inclusive unit prices into totals.
type Convention int

const (
	// ConventionInclusive decomposes the full VAT-inclusive price; discounts are ignored.
	ConventionInclusive Convention = iota
	// ConventionDiscountFirst applies the line discount before extracting VAT.
	ConventionDiscountFirst
)

// String implements fmt.Stringer.
func (c Convention) String() string {
	switch c {
	case ConventionInclusive:
		return "inclusive"
	case ConventionDiscountFirst:
		return "discount_first"
	default:
		return "unknown"
	}
}

// ConventionFor maps a document kind name to its pricing convention. An empty
// kind prices like an invoice. Document kinds resolve through here too.
func ConventionFor(kind string) (Convention, bool) {
	switch kind {
	case "", "invoice":
		return ConventionInclusive, true
	case "proforma", "quotation":
		return ConventionDiscountFirst, true
	}
	return 0, false
}

// LineItem describes a sold item. UnitPrice is VAT-inclusive.
type LineItem struct {
	Description     string
	Quantity        int
	UnitPrice       float64
	DiscountPercent float64
}

// LineItemTotals holds the derived amounts for one line.
type LineItemTotals struct {
	PriceExclVAT float64
	VAT          float64
	TotalIncl    float64
}

// DocumentTotals aggregates line totals for a whole document.
type DocumentTotals struct {
	TotalExcl     float64
	Tax           float64
	TotalIncl     float64
	TotalDiscount float64
}

// ComputeLineItemTotals prices a single line. Values are not rounded.
func ComputeLineItemTotals(item LineItem, vatRate float64) LineItemTotals {
	priceAfterDiscount := item.UnitPrice * (1 - item.DiscountPercent/100)
	priceExcl := (priceAfterDiscount * float64(item.Quantity)) / (1 + vatRate)
	vat := priceExcl * vatRate
	return LineItemTotals{
		PriceExclVAT: priceExcl,
		VAT:          vat,
		TotalIncl:    priceExcl + vat,
	}
}

// ComputeDocumentTotals sums line totals in order. An empty slice yields zero totals.
func ComputeDocumentTotals(items []LineItem, vatRate float64) DocumentTotals {
	var totals DocumentTotals
	for _, it := range items {
		line := ComputeLineItemTotals(it, vatRate)
		totals.TotalExcl += line.PriceExclVAT
		totals.Tax += line.VAT
		totals.TotalDiscount += it.UnitPrice * float64(it.Quantity) * it.DiscountPercent / 100
	}
	totals.TotalIncl = totals.TotalExcl + totals.Tax
	return totals
}

// Engine binds a VAT rate and a convention so callers never hard-code either.
type Engine struct {
	VATRate    float64
	Convention Convention
}

// NewEngine returns an engine for the given rate, falling back to DefaultVATRate for negative rates.
func NewEngine(vatRate float64, convention Convention) Engine {
	if vatRate < 0 {
		vatRate = DefaultVATRate
	}
	return Engine{VATRate: vatRate, Convention: convention}
}

// Line prices one item under the engine's convention.
func (e Engine) Line(item LineItem) LineItemTotals {
	return ComputeLineItemTotals(e.normalise(item), e.VATRate)
}

// Lines prices every item and returns the per-line totals in input order.
func (e Engine) Lines(items []LineItem) []LineItemTotals {
	out := make([]LineItemTotals, 0, len(items))
	for _, it := range items {
		out = append(out, e.Line(it))
	}
	return out
}

// Document aggregates totals under the engine's convention.
func (e Engine) Document(items []LineItem) DocumentTotals {
	normalised := make([]LineItem, 0, len(items))
	for _, it := range items {
		normalised = append(normalised, e.normalise(it))
	}
	return ComputeDocumentTotals(normalised, e.VATRate)
}

func (e Engine) normalise(item LineItem) LineItem {
	if e.Convention == ConventionInclusive {
		item.DiscountPercent = 0
	}
	return item
}
