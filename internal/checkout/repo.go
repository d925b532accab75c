package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warungpos/go-pos-checkout/internal/ledger"
	"github.com/warungpos/go-pos-checkout/internal/pricing"
	"github.com/warungpos/go-pos-checkout/internal/stock"
)

// Repo is the pgx-backed Store. Each method is one transaction; the deferred
// rollback makes any early return (including a context timeout mid-flight)
// leave the store in its pre-call state.
type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) PersistOrder(ctx context.Context, po *PreparedOrder) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Nomor order per tenant: counter row di-lock oleh ON CONFLICT UPDATE,
	// jadi dua commit bersamaan untuk tenant yang sama diserialisasi di sini.
	err = tx.QueryRow(ctx, `
		INSERT INTO tenant_counters(tenant_id, last_order_number) VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE
		SET last_order_number = tenant_counters.last_order_number + 1
		RETURNING last_order_number`, po.Order.TenantID).Scan(&po.Order.OrderNumber)
	if err != nil {
		return fmt.Errorf("allocate order number: %w", err)
	}

	o := &po.Order
	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, tenant_id, order_number, ticket_id, order_type, status,
			subtotal_cents, tax_cents, total_cents, customer_ref, table_ref, notes,
			created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.TenantID, o.OrderNumber, o.TicketID, o.OrderType, o.Status,
		o.SubtotalCents, o.TaxCents, o.TotalCents, o.CustomerRef, o.TableRef, o.Notes,
		o.CreatedAt, o.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, it := range po.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, name, price_cents, qty, subtotal_cents, modifiers, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			it.ID, it.OrderID, it.ProductID, it.Name, it.PriceCents, it.Qty, it.SubtotalCents, it.Modifiers, it.Notes)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	p := po.Payment
	_, err = tx.Exec(ctx, `
		INSERT INTO payments(id, order_id, method, amount_cents, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.OrderID, p.Method, p.AmountCents, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	// Authoritative stock check under the row lock. An
	// InsufficientStockError here aborts the whole order via the deferred
	// rollback.
	for _, d := range po.Deductions {
		if err := stock.ReserveAndDecrement(ctx, tx, o.TenantID, d.ProductID, d.Qty); err != nil {
			return err
		}
	}

	err = ledger.Append(ctx, tx, ledger.Entry{
		TenantID:    o.TenantID,
		Type:        ledger.TypeSale,
		AmountCents: o.TotalCents,
		Description: fmt.Sprintf("sale for order #%d (%s)", o.OrderNumber, pricing.FormatCents(o.TotalCents)),
		OrderID:     o.ID,
	})
	if err != nil {
		return fmt.Errorf("append sale entry: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *Repo) CancelOrder(ctx context.Context, req CancelRequest, now time.Time) (*CancelledOrder, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var (
		orderNumber int64
		ticketID    string
		status      Status
		totalCents  int64
	)
	err = tx.QueryRow(ctx, `
		SELECT order_number, ticket_id, status, total_cents
		FROM orders WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, req.OrderID, req.TenantID).
		Scan(&orderNumber, &ticketID, &status, &totalCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	if status == StatusCancelled {
		return nil, ErrAlreadyCancelled
	}
	if !CanTransition(status, StatusCancelled) {
		return nil, fmt.Errorf("order in status %s cannot be cancelled", status)
	}

	// Restore pakai qty yang tercatat di order_items, bukan hitung ulang.
	// ORDER BY matches the lock order used at commit time (sorted by product
	// id) so a cancel and a commit on the same products cannot deadlock.
	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM order_items WHERE order_id = $1 ORDER BY product_id`, req.OrderID)
	if err != nil {
		return nil, err
	}
	type itemQty struct {
		productID string
		qty       int
	}
	var items []itemQty
	for rows.Next() {
		var it itemQty
		if err := rows.Scan(&it.productID, &it.qty); err != nil {
			rows.Close()
			return nil, err
		}
		items = append(items, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, it := range items {
		if err := stock.Restore(ctx, tx, req.TenantID, it.productID, it.qty); err != nil {
			return nil, fmt.Errorf("restore stock for %s: %w", it.productID, err)
		}
	}

	err = ledger.Append(ctx, tx, ledger.Entry{
		TenantID:    req.TenantID,
		Type:        ledger.TypeRefund,
		AmountCents: totalCents,
		Description: fmt.Sprintf("refund for order #%d (%s)", orderNumber, pricing.FormatCents(totalCents)),
		OrderID:     req.OrderID,
	})
	if err != nil {
		return nil, fmt.Errorf("append refund entry: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE orders
		SET status = $3, cancelled_at = $4, cancelled_by = $5, cancel_reason = $6
		WHERE id = $1 AND tenant_id = $2`,
		req.OrderID, req.TenantID, StatusCancelled, now, req.UserID, req.Reason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &CancelledOrder{
		OrderID:     req.OrderID,
		TenantID:    req.TenantID,
		OrderNumber: orderNumber,
		TicketID:    ticketID,
		TotalCents:  totalCents,
		CancelledAt: now,
	}, nil
}

func (r *Repo) OrderSummary(ctx context.Context, tenantID, orderID string) (*OrderSummary, error) {
	var s OrderSummary
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_number, ticket_id, status, total_cents
		FROM orders WHERE id = $1 AND tenant_id = $2`, orderID, tenantID).
		Scan(&s.OrderID, &s.OrderNumber, &s.TicketID, &s.Status, &s.TotalCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
