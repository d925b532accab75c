// Package stock owns the stock-quantity invariant: tracked stock never goes
// negative, and every decrement made at commit time is reversed exactly once
// at cancellation with the originally committed quantity.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Deduction is one aggregated (product, qty) pair to decrement at commit.
type Deduction struct {
	ProductID string
	Qty       int
}

var ErrProductGone = errors.New("product row missing")

// ReserveAndDecrement locks the product row and decrements stock. Untracked
// products always satisfy the request (no-op). Runs inside the caller's
// transaction so the decrement lives or dies with the rest of the commit.
func ReserveAndDecrement(ctx context.Context, tx pgx.Tx, tenantID, productID string, qty int) error {
	var tracked bool
	var current int
	err := tx.QueryRow(ctx, `
		SELECT track_stock, stock FROM products
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, productID, tenantID).Scan(&tracked, &current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductGone
	}
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}
	if current < qty {
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: current}
	}
	_, err = tx.Exec(ctx, `
		UPDATE products SET stock = stock - $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2`, productID, tenantID, qty)
	return err
}

// Restore increments stock for tracked products; no-op for untracked. Has no
// business failure mode: callers guard against double-restoration (an order
// cancels at most once), not this function.
func Restore(ctx context.Context, tx pgx.Tx, tenantID, productID string, qty int) error {
	var tracked bool
	err := tx.QueryRow(ctx, `
		SELECT track_stock FROM products
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE`, productID, tenantID).Scan(&tracked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductGone
	}
	if err != nil {
		return err
	}
	if !tracked {
		return nil
	}
	_, err = tx.Exec(ctx, `
		UPDATE products SET stock = stock + $3, updated_at = now()
		WHERE id = $1 AND tenant_id = $2`, productID, tenantID, qty)
	return err
}
