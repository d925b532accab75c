package catalog

import "time"

type Product struct {
	ID            string
	TenantID      string
	Name          string
	PriceCents    int64
	CostCents     *int64
	TrackStock    bool
	Stock         int
	LowStockAlert *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
