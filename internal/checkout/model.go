package checkout

import (
	"time"

	"github.com/warungpos/go-pos-checkout/internal/stock"
)

type Order struct {
	ID            string
	TenantID      string
	OrderNumber   int64
	TicketID      string
	OrderType     string
	Status        Status
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	CustomerRef   string
	TableRef      string
	Notes         string
	CreatedAt     time.Time
	CompletedAt   time.Time
	CancelledAt   *time.Time
	CancelledBy   string
	CancelReason  string
}

// OrderItem snapshots name and price at time of sale; later catalog edits
// must not rewrite history.
type OrderItem struct {
	ID            string
	OrderID       string
	ProductID     string
	Name          string
	PriceCents    int64
	Qty           int
	SubtotalCents int64
	Modifiers     string
	Notes         string
}

type Payment struct {
	ID          string
	OrderID     string
	Method      string
	AmountCents int64
	CreatedAt   time.Time
}

type CommitItem struct {
	ProductID          string `json:"product_id"`
	Qty                int    `json:"qty"`
	UnitPriceCentsOver *int64 `json:"unit_price_cents_override,omitempty"`
	Modifiers          string `json:"modifiers,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

type CommitRequest struct {
	TenantID      string       `json:"tenant_id"`
	UserID        string       `json:"user_id"`
	Items         []CommitItem `json:"items"`
	PaymentMethod string       `json:"payment_method"`
	OrderType     string       `json:"order_type"`
	CustomerRef   string       `json:"customer_ref,omitempty"`
	TableRef      string       `json:"table_ref,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

// Receipt is the caller-facing result of a successful commit. Items carry
// the sale-time snapshots so the receipt dispatcher never re-reads the
// catalog.
type Receipt struct {
	OrderID       string
	OrderNumber   int64
	TicketID      string
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	Items         []ItemSnapshot
}

type CancelRequest struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"-"`
	UserID   string `json:"user_id"`
	Reason   string `json:"reason,omitempty"`
}

type CancelledOrder struct {
	OrderID     string
	TenantID    string
	OrderNumber int64
	TicketID    string
	TotalCents  int64
	CancelledAt time.Time
}

// PreparedOrder is everything PersistOrder writes in one transaction.
// Deductions carry the aggregated per-product quantities for tracked
// products only.
type PreparedOrder struct {
	Order      Order
	Items      []OrderItem
	Payment    Payment
	Deductions []stock.Deduction
}

type OrderSummary struct {
	OrderID     string `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	TicketID    string `json:"ticket_id"`
	Status      Status `json:"status"`
	TotalCents  int64  `json:"total_cents"`
}
