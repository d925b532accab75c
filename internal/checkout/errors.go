package checkout

import (
	"errors"
	"fmt"

	"github.com/warungpos/go-pos-checkout/internal/catalog"
	"github.com/warungpos/go-pos-checkout/internal/stock"
	"github.com/warungpos/go-pos-checkout/internal/tenant"
)

var (
	ErrEmptyOrder       = errors.New("order has no items")
	ErrInvalidPayment   = errors.New("payment method required")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyCancelled = errors.New("order already cancelled")
)

type InvalidQuantityError struct {
	ProductID string
	Qty       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Qty, e.ProductID)
}

type InvalidPriceError struct {
	ProductID  string
	PriceCents int64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price override %d for product %s", e.PriceCents, e.ProductID)
}

// Retryable reports whether an error is infrastructure-level. Validation and
// business-invariant failures are terminal: retrying them without changing
// the input can never succeed. Everything else (store down, tx timeout) is
// safe to retry because a failed unit of work leaves no partial state.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrEmptyOrder),
		errors.Is(err, ErrInvalidPayment),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrAlreadyCancelled),
		errors.Is(err, tenant.ErrNotFound):
		return false
	}
	var (
		iq *InvalidQuantityError
		ip *InvalidPriceError
		up *catalog.UnknownProductError
		is *stock.InsufficientStockError
	)
	if errors.As(err, &iq) || errors.As(err, &ip) || errors.As(err, &up) || errors.As(err, &is) {
		return false
	}
	return true
}
