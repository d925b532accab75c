package checkout

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCompleted = "OrderCompleted"
	EventOrderCancelled = "OrderCancelled"
)

const (
	TopicOrderCompleted = "pos.order.completed"
	TopicOrderCancelled = "pos.order.cancelled"
)

// Partition key = order_id, supaya event satu order tetap berurutan.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemSnapshot struct {
	ProductID     string `json:"product_id"`
	Name          string `json:"name"`
	Qty           int    `json:"qty"`
	PriceCents    int64  `json:"price_cents"`
	SubtotalCents int64  `json:"subtotal_cents"`
}

// OrderCompletedPayload feeds the receipt dispatcher. Published after the
// transaction commits; it is not part of the transactional guarantee.
type OrderCompletedPayload struct {
	OrderID       string         `json:"order_id"`
	TenantID      string         `json:"tenant_id"`
	OrderNumber   int64          `json:"order_number"`
	TicketID      string         `json:"ticket_id"`
	OrderType     string         `json:"order_type"`
	PaymentMethod string         `json:"payment_method"`
	SubtotalCents int64          `json:"subtotal_cents"`
	TaxCents      int64          `json:"tax_cents"`
	TotalCents    int64          `json:"total_cents"`
	Items         []ItemSnapshot `json:"items"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"order_id"`
	TenantID    string `json:"tenant_id"`
	OrderNumber int64  `json:"order_number"`
	TotalCents  int64  `json:"total_cents"`
	CancelledBy string `json:"cancelled_by"`
	Reason      string `json:"reason,omitempty"`
}
