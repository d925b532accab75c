// Package pricing computes order totals. Pure, no I/O: the same lines and
// rate always produce the same quote, so retries and tests are trivially
// reproducible.
package pricing

import "github.com/shopspring/decimal"

type Line struct {
	UnitPriceCents int64
	Qty            int
}

type Quote struct {
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
}

var hundred = decimal.NewFromInt(100)

// Price: subtotal = Σ price×qty, tax = subtotal × rate/100 rounded to whole
// cents (half away from zero), total = subtotal + tax.
func Price(lines []Line, taxRatePercent float64) Quote {
	var subtotal int64
	for _, l := range lines {
		subtotal += l.UnitPriceCents * int64(l.Qty)
	}

	tax := decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromFloat(taxRatePercent)).
		Div(hundred).
		Round(0).
		IntPart()

	return Quote{
		SubtotalCents: subtotal,
		TaxCents:      tax,
		TotalCents:    subtotal + tax,
	}
}

// FormatCents renders integer cents as a decimal string, e.g. 660 -> "6.60".
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
