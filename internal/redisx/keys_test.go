package redisx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusKeyIsTenantScoped(t *testing.T) {
	k1 := OrderStatusKey("t1", "o1")
	k2 := OrderStatusKey("t2", "o1")

	// same order id under two tenants must never share a cache entry
	assert.NotEqual(t, k1, k2)
	assert.Contains(t, k1, "t1")
	assert.Contains(t, k2, "t2")
	assert.Contains(t, k1, "o1")
}
