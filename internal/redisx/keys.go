package redisx

import (
	"fmt"
	"time"
)

const (
	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Rendered receipt text: receipt:{order_id}
	KeyReceipt = "receipt:%s"
)

// OrderStatusKey scopes the status cache by tenant. The key must carry the
// tenant id: a cache hit is served without a DB ownership check, so a key
// keyed by order id alone would leak one tenant's order status to another.
func OrderStatusKey(tenantID, orderID string) string {
	return fmt.Sprintf("order_status:%s:%s", tenantID, orderID)
}

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLReceipt     = 24 * time.Hour
)
