package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		lines    []Line
		rate     float64
		subtotal int64
		tax      int64
		total    int64
	}{
		{
			name:     "worked example 3x2.00 at 10%",
			lines:    []Line{{UnitPriceCents: 200, Qty: 3}},
			rate:     10,
			subtotal: 600,
			tax:      60,
			total:    660,
		},
		{
			name:     "zero rate",
			lines:    []Line{{UnitPriceCents: 199, Qty: 2}},
			rate:     0,
			subtotal: 398,
			tax:      0,
			total:    398,
		},
		{
			name:     "fractional tax rounds half up",
			lines:    []Line{{UnitPriceCents: 150, Qty: 1}},
			rate:     7, // 10.5 cents -> 11
			subtotal: 150,
			tax:      11,
			total:    161,
		},
		{
			name:     "multiple lines",
			lines:    []Line{{UnitPriceCents: 200, Qty: 3}, {UnitPriceCents: 150, Qty: 2}},
			rate:     10,
			subtotal: 900,
			tax:      90,
			total:    990,
		},
		{
			name:     "no lines",
			lines:    nil,
			rate:     10,
			subtotal: 0,
			tax:      0,
			total:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Price(tt.lines, tt.rate)
			assert.Equal(t, tt.subtotal, q.SubtotalCents)
			assert.Equal(t, tt.tax, q.TaxCents)
			assert.Equal(t, tt.total, q.TotalCents)
		})
	}
}

func TestPriceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "lines")
		lines := make([]Line, n)
		var want int64
		for i := range lines {
			price := rapid.Int64Range(0, 1_000_000).Draw(t, "price")
			qty := rapid.IntRange(1, 100).Draw(t, "qty")
			lines[i] = Line{UnitPriceCents: price, Qty: qty}
			want += price * int64(qty)
		}
		rate := rapid.Float64Range(0, 30).Draw(t, "rate")

		q := Price(lines, rate)

		if q.SubtotalCents != want {
			t.Fatalf("subtotal = %d, want %d", q.SubtotalCents, want)
		}
		if q.TotalCents != q.SubtotalCents+q.TaxCents {
			t.Fatalf("total %d != subtotal %d + tax %d", q.TotalCents, q.SubtotalCents, q.TaxCents)
		}
		if q.TaxCents < 0 {
			t.Fatalf("negative tax %d", q.TaxCents)
		}

		// deterministic: same input, same quote
		if again := Price(lines, rate); again != q {
			t.Fatalf("not reproducible: %+v vs %+v", q, again)
		}
	})
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "6.60", FormatCents(660))
	assert.Equal(t, "0.00", FormatCents(0))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "123.40", FormatCents(12340))
}
