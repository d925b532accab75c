package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("tenant not found")

// Settings looks up per-tenant configuration. The engine never reads tenant
// rows directly; the tax rate is injected through this boundary so the
// pricing calculator stays pure.
type Settings struct{ DB *pgxpool.Pool }

func (s *Settings) TaxRatePercent(ctx context.Context, tenantID string) (float64, error) {
	var rate float64
	err := s.DB.QueryRow(ctx,
		`SELECT tax_rate_percent FROM tenants WHERE id = $1 AND active`, tenantID).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("tax rate lookup: %w", err)
	}
	return rate, nil
}
