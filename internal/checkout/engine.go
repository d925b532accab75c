// Package checkout turns a validated cart into a durable, priced,
// stock-adjusted order, and reverses it on cancellation. Both paths are
// all-or-nothing: no state exists where an order was written without its
// stock decrement and ledger entry, or vice versa.
package checkout

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warungpos/go-pos-checkout/internal/catalog"
	"github.com/warungpos/go-pos-checkout/internal/pricing"
	"github.com/warungpos/go-pos-checkout/internal/stock"
)

type CatalogReader interface {
	ProductsForSale(ctx context.Context, tenantID string, ids []string) (map[string]catalog.Product, error)
}

type TaxConfig interface {
	TaxRatePercent(ctx context.Context, tenantID string) (float64, error)
}

// Store executes the transactional tail of commit and the whole of
// cancellation. Implementations must make each call one atomic unit of work.
type Store interface {
	// PersistOrder allocates the per-tenant order number (written back into
	// po.Order.OrderNumber), writes order/items/payment, decrements stock for
	// every deduction and appends the SALE ledger entry.
	PersistOrder(ctx context.Context, po *PreparedOrder) error

	// CancelOrder restores stock from the order's committed item quantities,
	// appends the REFUND entry and flips the status to CANCELLED.
	CancelOrder(ctx context.Context, req CancelRequest, now time.Time) (*CancelledOrder, error)
}

type Engine struct {
	Catalog CatalogReader
	Tax     TaxConfig
	Store   Store

	// Now is overridable in tests; nil means time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

// Commit validates the cart, prices it and persists the order atomically.
// Any validation failure returns before a single write happens.
func (e *Engine) Commit(ctx context.Context, req CommitRequest) (Receipt, error) {
	if len(req.Items) == 0 {
		return Receipt{}, ErrEmptyOrder
	}
	if req.PaymentMethod == "" {
		return Receipt{}, ErrInvalidPayment
	}
	for _, it := range req.Items {
		if it.Qty <= 0 {
			return Receipt{}, &InvalidQuantityError{ProductID: it.ProductID, Qty: it.Qty}
		}
		if it.UnitPriceCentsOver != nil && *it.UnitPriceCentsOver < 0 {
			return Receipt{}, &InvalidPriceError{ProductID: it.ProductID, PriceCents: *it.UnitPriceCentsOver}
		}
	}

	products, err := e.Catalog.ProductsForSale(ctx, req.TenantID, productIDs(req.Items))
	if err != nil {
		return Receipt{}, err
	}

	// Cek kecukupan stok pakai total per produk, bukan per baris: produk yang
	// muncul di dua baris harus dijumlah dulu. The authoritative check runs
	// again under the row lock inside PersistOrder.
	agg := aggregateQuantities(req.Items)
	for _, a := range agg {
		p := products[a.ProductID]
		if p.TrackStock && p.Stock < a.Qty {
			return Receipt{}, &stock.InsufficientStockError{
				ProductID: a.ProductID, Requested: a.Qty, Available: p.Stock,
			}
		}
	}

	rate, err := e.Tax.TaxRatePercent(ctx, req.TenantID)
	if err != nil {
		return Receipt{}, err
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, pricing.Line{UnitPriceCents: unitPrice(it, products), Qty: it.Qty})
	}
	quote := pricing.Price(lines, rate)

	now := e.now()
	order := Order{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		TicketID:      uuid.NewString(),
		OrderType:     req.OrderType,
		Status:        StatusCompleted,
		SubtotalCents: quote.SubtotalCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		CustomerRef:   req.CustomerRef,
		TableRef:      req.TableRef,
		Notes:         req.Notes,
		CreatedAt:     now,
		CompletedAt:   now,
	}

	items := make([]OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		price := unitPrice(it, products)
		items = append(items, OrderItem{
			ID:            uuid.NewString(),
			OrderID:       order.ID,
			ProductID:     it.ProductID,
			Name:          products[it.ProductID].Name,
			PriceCents:    price,
			Qty:           it.Qty,
			SubtotalCents: price * int64(it.Qty),
			Modifiers:     it.Modifiers,
			Notes:         it.Notes,
		})
	}

	deductions := make([]stock.Deduction, 0, len(agg))
	for _, a := range agg {
		if products[a.ProductID].TrackStock {
			deductions = append(deductions, stock.Deduction{ProductID: a.ProductID, Qty: a.Qty})
		}
	}
	// Row locks are taken in deduction order; sorting by product id gives
	// every transaction the same lock order so concurrent commits touching
	// the same products cannot deadlock.
	sort.Slice(deductions, func(i, j int) bool { return deductions[i].ProductID < deductions[j].ProductID })

	po := PreparedOrder{
		Order: order,
		Items: items,
		Payment: Payment{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			Method:      req.PaymentMethod,
			AmountCents: quote.TotalCents,
			CreatedAt:   now,
		},
		Deductions: deductions,
	}
	if err := e.Store.PersistOrder(ctx, &po); err != nil {
		return Receipt{}, err
	}

	snaps := make([]ItemSnapshot, 0, len(items))
	for _, it := range items {
		snaps = append(snaps, ItemSnapshot{
			ProductID:     it.ProductID,
			Name:          it.Name,
			Qty:           it.Qty,
			PriceCents:    it.PriceCents,
			SubtotalCents: it.SubtotalCents,
		})
	}
	return Receipt{
		OrderID:       po.Order.ID,
		OrderNumber:   po.Order.OrderNumber,
		TicketID:      po.Order.TicketID,
		SubtotalCents: po.Order.SubtotalCents,
		TaxCents:      po.Order.TaxCents,
		TotalCents:    po.Order.TotalCents,
		Items:         snaps,
	}, nil
}

// Cancel transitions COMPLETED -> CANCELLED, restoring stock from the
// committed item quantities. The CANCELLED guard in the store makes repeat
// attempts fail with ErrAlreadyCancelled instead of double-restoring.
func (e *Engine) Cancel(ctx context.Context, req CancelRequest) (*CancelledOrder, error) {
	return e.Store.CancelOrder(ctx, req, e.now())
}

func unitPrice(it CommitItem, products map[string]catalog.Product) int64 {
	if it.UnitPriceCentsOver != nil {
		return *it.UnitPriceCentsOver
	}
	return products[it.ProductID].PriceCents
}

func productIDs(items []CommitItem) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			out = append(out, it.ProductID)
		}
	}
	return out
}

type aggregated struct {
	ProductID string
	Qty       int
}

// aggregateQuantities sums quantities per product preserving first-seen
// order, so stock checks and deductions are deterministic.
func aggregateQuantities(items []CommitItem) []aggregated {
	idx := make(map[string]int, len(items))
	out := make([]aggregated, 0, len(items))
	for _, it := range items {
		if i, ok := idx[it.ProductID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, aggregated{ProductID: it.ProductID, Qty: it.Qty})
	}
	return out
}
