package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/common"
	"github.com/noah-isme/backoffice-api/internal/pricing"
)

func TestLineConstructorsValidate(t *testing.T) {
	_, err := NewInvoiceLine("", 1, 100)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = NewInvoiceLine("fibre", 0, 100)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = NewQuotationLine("fibre", 1, 100, 101)
	require.ErrorIs(t, err, common.ErrValidation)
	_, err = NewProformaLine("fibre", 1, -1, 0)
	require.ErrorIs(t, err, common.ErrValidation)

	line, err := NewQuotationLine("fibre", 2, 100, 10)
	require.NoError(t, err)
	require.Equal(t, pricing.LineItem{Description: "fibre", Quantity: 2, UnitPrice: 100, DiscountPercent: 10}, line.PricingItem())
}

func TestKindConventions(t *testing.T) {
	require.Equal(t, pricing.ConventionInclusive, KindInvoice.Convention())
	require.Equal(t, pricing.ConventionDiscountFirst, KindQuotation.Convention())
	require.Equal(t, pricing.ConventionDiscountFirst, KindProforma.Convention())
	require.Equal(t, "INV-2024-0007", KindInvoice.FormatNumber(2024, 7))
	require.Equal(t, "QUO-2025-12345", KindQuotation.FormatNumber(2025, 12345))

	_, err := ParseKind("receipt")
	require.Error(t, err)
}

func TestKindConventionMatchesQuoteEndpoint(t *testing.T) {
	for _, k := range []Kind{KindInvoice, KindProforma, KindQuotation} {
		c, ok := pricing.ConventionFor(string(k))
		require.True(t, ok, k)
		require.Equal(t, c, k.Convention(), k)
	}
	c, ok := pricing.ConventionFor("")
	require.True(t, ok)
	require.Equal(t, KindInvoice.Convention(), c)
	_, ok = pricing.ConventionFor("receipt")
	require.False(t, ok)
}

func TestComputeTotalsInvoice(t *testing.T) {
	lines := []InvoiceLine{{Description: "120Mbps", Quantity: 1, UnitPrice: 40000}}
	got := ComputeTotals(KindInvoice.Engine(0.18), lines)
	require.Equal(t, 33898.31, got.TotalExcl)
	require.Equal(t, 6101.69, got.Tax)
	require.Equal(t, 40000.0, got.TotalIncl)
	require.Equal(t, "forty thousand", got.AmountInWords)
}

func TestComputeTotalsQuotationDiscount(t *testing.T) {
	lines := []QuotationLine{
		{Description: "router", Quantity: 2, UnitPrice: 10000, DiscountPercent: 10},
		{Description: "install", Quantity: 1, UnitPrice: 5000},
	}
	got := ComputeTotals(KindQuotation.Engine(0.18), lines)
	require.Equal(t, 23000.0, got.TotalIncl)
	require.Equal(t, 2000.0, got.TotalDiscount)
	require.Equal(t, "twenty three thousand", got.AmountInWords)
}

func TestQuotationLineToInvoiceLinePreservesTotal(t *testing.T) {
	q := []QuotationLine{
		{Description: "router", Quantity: 3, UnitPrice: 12500, DiscountPercent: 15},
		{Description: "cable", Quantity: 7, UnitPrice: 850, DiscountPercent: 0},
	}
	inv := make([]InvoiceLine, 0, len(q))
	for _, l := range q {
		inv = append(inv, l.InvoiceLine())
	}
	quoted := ComputeTotals(KindQuotation.Engine(0.18), q)
	invoiced := ComputeTotals(KindInvoice.Engine(0.18), inv)
	require.Equal(t, quoted.TotalIncl, invoiced.TotalIncl)
	require.Equal(t, quoted.TotalExcl, invoiced.TotalExcl)
}

func TestNextNumber(t *testing.T) {
	seq := &LocalSequencer{}
	ctx := context.Background()
	at := time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC)

	n, err := NextNumber(ctx, seq, KindInvoice, at)
	require.NoError(t, err)
	require.Equal(t, "INV-2024-0001", n)
	n, _ = NextNumber(ctx, seq, KindInvoice, at)
	require.Equal(t, "INV-2024-0002", n)
	n, _ = NextNumber(ctx, seq, KindQuotation, at)
	require.Equal(t, "QUO-2024-0001", n)
	n, _ = NextNumber(ctx, seq, KindInvoice, at.AddDate(0, 0, 1))
	require.Equal(t, "INV-2025-0001", n)
}
