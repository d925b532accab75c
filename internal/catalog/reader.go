package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UnknownProductError: product tidak ada, atau milik tenant lain.
// Keduanya dilaporkan sama supaya id tenant lain tidak bocor.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("unknown product: %s", e.ProductID)
}

type Reader struct{ DB *pgxpool.Pool }

// ProductsForSale resolves every requested id for the tenant. Missing ids and
// ids owned by another tenant reject the whole call; lines are never dropped
// silently.
func (r *Reader) ProductsForSale(ctx context.Context, tenantID string, ids []string) (map[string]Product, error) {
	if len(ids) == 0 {
		return map[string]Product{}, nil
	}

	params := ""
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, tenant_id, name, price_cents, cost_cents, track_stock, stock, low_stock_alert, created_at, updated_at
		FROM products
		WHERE tenant_id = $1 AND id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.PriceCents, &p.CostCents,
			&p.TrackStock, &p.Stock, &p.LowStockAlert, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		found[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, &UnknownProductError{ProductID: id}
		}
	}
	return found, nil
}

func (r *Reader) List(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, tenant_id, name, price_cents, cost_cents, track_stock, stock, low_stock_alert, created_at, updated_at
		FROM products WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.PriceCents, &p.CostCents,
			&p.TrackStock, &p.Stock, &p.LowStockAlert, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
