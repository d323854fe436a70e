package pricing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MaxAmount is the smallest amount a NUMERIC(14,2) column cannot hold.
const MaxAmount = 1e12

// ErrAmountOutOfRange is returned for totals that cannot be stored or spelled out.
var ErrAmountOutOfRange = errors.New("pricing: amount out of range")

// CheckAmount rejects NaN, infinities and amounts whose magnitude reaches MaxAmount.
func CheckAmount(x float64) error {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) >= MaxAmount {
		return ErrAmountOutOfRange
	}
	return nil
}

// CheckDocument applies CheckAmount to every total of t.
func CheckDocument(t DocumentTotals) error {
	for _, x := range []float64{t.TotalExcl, t.Tax, t.TotalIncl, t.TotalDiscount} {
		if err := CheckAmount(x); err != nil {
			return err
		}
	}
	return nil
}

// Round2 rounds a monetary amount to two decimal places, half away from zero.
// Only call it when presenting or persisting a value.
func Round2(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return v
}

// RoundLine returns a copy of t rounded for presentation.
func RoundLine(t LineItemTotals) LineItemTotals {
	return LineItemTotals{
		PriceExclVAT: Round2(t.PriceExclVAT),
		VAT:          Round2(t.VAT),
		TotalIncl:    Round2(t.TotalIncl),
	}
}

// RoundDocument returns a copy of t rounded for presentation.
func RoundDocument(t DocumentTotals) DocumentTotals {
	return DocumentTotals{
		TotalExcl:     Round2(t.TotalExcl),
		Tax:           Round2(t.Tax),
		TotalIncl:     Round2(t.TotalIncl),
		TotalDiscount: Round2(t.TotalDiscount),
	}
}

// WholeUnits truncates an amount to its integer part for the amount-in-words line.
// The value is rounded to cents first so 39999.999999999996 reads as 40000.
func WholeUnits(x float64) int64 {
	return decimal.NewFromFloat(x).Round(2).Floor().IntPart()
}
