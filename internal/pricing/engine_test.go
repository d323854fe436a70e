package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const tolerance = 1e-9

func TestComputeDocumentTotalsEmpty(t *testing.T) {
	for _, rate := range []float64{0, 0.18, 0.25} {
		got := ComputeDocumentTotals(nil, rate)
		if got != (DocumentTotals{}) {
			t.Fatalf("rate %v: expected zero totals, got %+v", rate, got)
		}
	}
}

func TestComputeLineItemTotalsReconstruction(t *testing.T) {
	items := []LineItem{
		{Description: "router", Quantity: 3, UnitPrice: 12500, DiscountPercent: 0},
		{Description: "install", Quantity: 1, UnitPrice: 7999.99, DiscountPercent: 12.5},
		{Description: "free", Quantity: 2, UnitPrice: 0},
		{Description: "full discount", Quantity: 4, UnitPrice: 100, DiscountPercent: 100},
	}
	for _, it := range items {
		got := ComputeLineItemTotals(it, DefaultVATRate)
		require.InDelta(t, got.PriceExclVAT*(1+DefaultVATRate), got.TotalIncl, tolerance, it.Description)
		require.InDelta(t, got.PriceExclVAT*DefaultVATRate, got.VAT, tolerance, it.Description)
	}
}

func TestComputeDocumentTotalsAdditive(t *testing.T) {
	a := LineItem{Description: "A", Quantity: 2, UnitPrice: 15000, DiscountPercent: 10}
	b := LineItem{Description: "B", Quantity: 5, UnitPrice: 3200, DiscountPercent: 0}

	doc := ComputeDocumentTotals([]LineItem{a, b}, DefaultVATRate)
	la := ComputeLineItemTotals(a, DefaultVATRate)
	lb := ComputeLineItemTotals(b, DefaultVATRate)

	require.InDelta(t, la.PriceExclVAT+lb.PriceExclVAT, doc.TotalExcl, tolerance)
	require.InDelta(t, la.VAT+lb.VAT, doc.Tax, tolerance)
	require.InDelta(t, doc.TotalExcl+doc.Tax, doc.TotalIncl, tolerance)

	reversed := ComputeDocumentTotals([]LineItem{b, a}, DefaultVATRate)
	require.InDelta(t, doc.TotalIncl, reversed.TotalIncl, tolerance)
}

func TestDiscountMonotonic(t *testing.T) {
	prev := math.Inf(1)
	for discount := 0.0; discount <= 100; discount += 5 {
		got := ComputeLineItemTotals(LineItem{Quantity: 2, UnitPrice: 25000, DiscountPercent: discount}, DefaultVATRate)
		if got.TotalIncl >= prev {
			t.Fatalf("discount %v: total %v did not decrease from %v", discount, got.TotalIncl, prev)
		}
		prev = got.TotalIncl
	}

	zeroPrice := LineItem{Quantity: 2, UnitPrice: 0}
	low := ComputeLineItemTotals(zeroPrice, DefaultVATRate)
	zeroPrice.DiscountPercent = 50
	high := ComputeLineItemTotals(zeroPrice, DefaultVATRate)
	require.Equal(t, low.TotalIncl, high.TotalIncl)
}

func TestComputeLineItemTotals120Mbps(t *testing.T) {
	got := ComputeLineItemTotals(LineItem{Description: "120Mbps", Quantity: 1, UnitPrice: 40000}, 0.18)
	rounded := RoundLine(got)
	require.Equal(t, 33898.31, rounded.PriceExclVAT)
	require.Equal(t, 6101.69, rounded.VAT)
	require.Equal(t, 40000.00, rounded.TotalIncl)
}

func TestTotalDiscount(t *testing.T) {
	items := []LineItem{
		{Quantity: 2, UnitPrice: 10000, DiscountPercent: 10},
		{Quantity: 1, UnitPrice: 5000, DiscountPercent: 0},
		{Quantity: 3, UnitPrice: 2000, DiscountPercent: 50},
	}
	got := ComputeDocumentTotals(items, DefaultVATRate)
	require.InDelta(t, 2000+3000, got.TotalDiscount, tolerance)
	require.InDelta(t, 18000+5000+3000, got.TotalIncl, 1e-6)
}

func TestEngineConventions(t *testing.T) {
	item := LineItem{Description: "10Mbps", Quantity: 1, UnitPrice: 11800, DiscountPercent: 10}

	inclusive := NewEngine(0.18, ConventionInclusive)
	require.InDelta(t, 10000, inclusive.Line(item).PriceExclVAT, 1e-6)
	require.Zero(t, inclusive.Document([]LineItem{item}).TotalDiscount)

	discounted := NewEngine(0.18, ConventionDiscountFirst)
	require.InDelta(t, 9000, discounted.Line(item).PriceExclVAT, 1e-6)
	doc := discounted.Document([]LineItem{item})
	require.InDelta(t, 1180, doc.TotalDiscount, 1e-6)
	require.InDelta(t, 10620, doc.TotalIncl, 1e-6)

	lines := discounted.Lines([]LineItem{item, item})
	require.Len(t, lines, 2)
	require.Equal(t, lines[0], lines[1])
}

func TestNewEngineNegativeRate(t *testing.T) {
	e := NewEngine(-1, ConventionInclusive)
	require.Equal(t, DefaultVATRate, e.VATRate)
	require.Equal(t, "inclusive", e.Convention.String())
	require.Equal(t, "discount_first", ConventionDiscountFirst.String())
}

func TestRound2AndWholeUnits(t *testing.T) {
	require.Equal(t, 2.35, Round2(2.345))
	require.Equal(t, -2.35, Round2(-2.345))
	require.Equal(t, 0.0, Round2(0.004))
	require.EqualValues(t, 40000, WholeUnits(39999.999999999996))
	require.EqualValues(t, 12345, WholeUnits(12345.67))
}

func TestCheckAmount(t *testing.T) {
	require.NoError(t, CheckAmount(0))
	require.NoError(t, CheckAmount(999999999999.99))
	require.ErrorIs(t, CheckAmount(MaxAmount), ErrAmountOutOfRange)
	require.ErrorIs(t, CheckAmount(-1e20), ErrAmountOutOfRange)
	require.ErrorIs(t, CheckAmount(math.Inf(1)), ErrAmountOutOfRange)
	require.ErrorIs(t, CheckAmount(math.NaN()), ErrAmountOutOfRange)
	require.ErrorIs(t, CheckDocument(DocumentTotals{TotalDiscount: 2e12}), ErrAmountOutOfRange)
}
