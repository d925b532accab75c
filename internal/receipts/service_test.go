package receipts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warungpos/go-pos-checkout/internal/checkout"
)

func TestRender(t *testing.T) {
	text := Render(checkout.OrderCompletedPayload{
		OrderID:       "o1",
		TenantID:      "t1",
		OrderNumber:   7,
		TicketID:      "tic-7",
		OrderType:     "takeaway",
		PaymentMethod: "cash",
		SubtotalCents: 600,
		TaxCents:      60,
		TotalCents:    660,
		Items: []checkout.ItemSnapshot{
			{ProductID: "p1", Name: "Espresso", Qty: 3, PriceCents: 200, SubtotalCents: 600},
		},
	})

	assert.True(t, strings.HasPrefix(text, "ORDER #7"))
	assert.Contains(t, text, "tic-7")
	assert.Contains(t, text, "Espresso")
	assert.Contains(t, text, "x3")
	assert.Contains(t, text, "6.60")
	assert.Contains(t, text, "payment: cash")
}
