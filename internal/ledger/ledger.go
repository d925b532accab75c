// Package ledger is the append-only SALE/REFUND log. Entries are written
// inside the commit/cancel transactions and never mutated afterwards; the
// reporting side only ever reads.
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EntryType string

const (
	TypeSale   EntryType = "SALE"
	TypeRefund EntryType = "REFUND"
)

type Entry struct {
	ID          string
	TenantID    string
	Type        EntryType
	AmountCents int64
	Description string
	OrderID     string
	CreatedAt   time.Time
}

// Append writes one entry inside the caller's transaction.
func Append(ctx context.Context, tx pgx.Tx, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries(id, tenant_id, entry_type, amount_cents, description, order_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.TenantID, e.Type, e.AmountCents, e.Description, e.OrderID)
	return err
}

type Totals struct {
	SaleCents   int64 `json:"sale_cents"`
	RefundCents int64 `json:"refund_cents"`
	NetCents    int64 `json:"net_cents"`
}

// TotalsForTenant reconciles the ledger: Σ SALE − Σ REFUND must equal
// completed-minus-cancelled order totals for the tenant.
func TotalsForTenant(ctx context.Context, db *pgxpool.Pool, tenantID string) (Totals, error) {
	var t Totals
	err := db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_cents) FILTER (WHERE entry_type = 'SALE'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE entry_type = 'REFUND'), 0)
		FROM ledger_entries WHERE tenant_id = $1`, tenantID).
		Scan(&t.SaleCents, &t.RefundCents)
	if err != nil {
		return Totals{}, err
	}
	t.NetCents = t.SaleCents - t.RefundCents
	return t, nil
}
