package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/warungpos/go-pos-checkout/internal/catalog"
	"github.com/warungpos/go-pos-checkout/internal/checkout"
	"github.com/warungpos/go-pos-checkout/internal/stock"
)

// memStore mirrors the row-lock semantics of the pgx store with one mutex:
// every Store call is atomic, and the authoritative stock check happens
// inside PersistOrder like it does under FOR UPDATE.
type memStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	taxRates map[string]float64
	counters map[string]int64
	orders   map[string]*checkout.PreparedOrder
	entries  []memEntry

	failPersist error
}

type memEntry struct {
	tenantID    string
	entryType   string
	amountCents int64
	orderID     string
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]catalog.Product{
			"p0": {ID: "p0", TenantID: "t1", Name: "Beans", PriceCents: 300, TrackStock: true, Stock: 10},
			"p1": {ID: "p1", TenantID: "t1", Name: "Espresso", PriceCents: 200, TrackStock: true, Stock: 5},
			"p2": {ID: "p2", TenantID: "t1", Name: "Loose Tea", PriceCents: 150, TrackStock: false},
			"p3": {ID: "p3", TenantID: "t2", Name: "Foreign", PriceCents: 100, TrackStock: true, Stock: 9},
		},
		taxRates: map[string]float64{"t1": 10, "t2": 0},
		counters: map[string]int64{},
		orders:   map[string]*checkout.PreparedOrder{},
	}
}

func (m *memStore) ProductsForSale(_ context.Context, tenantID string, ids []string) (map[string]catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		p, ok := m.products[id]
		if !ok || p.TenantID != tenantID {
			return nil, &catalog.UnknownProductError{ProductID: id}
		}
		out[id] = p
	}
	return out, nil
}

func (m *memStore) TaxRatePercent(_ context.Context, tenantID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taxRates[tenantID], nil
}

func (m *memStore) PersistOrder(_ context.Context, po *checkout.PreparedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPersist != nil {
		return m.failPersist
	}

	// authoritative check before any mutation: all-or-nothing
	for _, d := range po.Deductions {
		p := m.products[d.ProductID]
		if p.TrackStock && p.Stock < d.Qty {
			return &stock.InsufficientStockError{ProductID: d.ProductID, Requested: d.Qty, Available: p.Stock}
		}
	}

	m.counters[po.Order.TenantID]++
	po.Order.OrderNumber = m.counters[po.Order.TenantID]

	for _, d := range po.Deductions {
		p := m.products[d.ProductID]
		if p.TrackStock {
			p.Stock -= d.Qty
			m.products[d.ProductID] = p
		}
	}

	cp := *po
	cp.Items = append([]checkout.OrderItem(nil), po.Items...)
	cp.Deductions = append([]stock.Deduction(nil), po.Deductions...)
	m.orders[po.Order.ID] = &cp

	m.entries = append(m.entries, memEntry{
		tenantID:    po.Order.TenantID,
		entryType:   "SALE",
		amountCents: po.Order.TotalCents,
		orderID:     po.Order.ID,
	})
	return nil
}

func (m *memStore) CancelOrder(_ context.Context, req checkout.CancelRequest, now time.Time) (*checkout.CancelledOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	po, ok := m.orders[req.OrderID]
	if !ok || po.Order.TenantID != req.TenantID {
		return nil, checkout.ErrOrderNotFound
	}
	if po.Order.Status == checkout.StatusCancelled {
		return nil, checkout.ErrAlreadyCancelled
	}

	for _, it := range po.Items {
		p := m.products[it.ProductID]
		if p.TrackStock {
			p.Stock += it.Qty
			m.products[it.ProductID] = p
		}
	}

	m.entries = append(m.entries, memEntry{
		tenantID:    req.TenantID,
		entryType:   "REFUND",
		amountCents: po.Order.TotalCents,
		orderID:     req.OrderID,
	})

	po.Order.Status = checkout.StatusCancelled
	po.Order.CancelledAt = &now
	po.Order.CancelledBy = req.UserID
	po.Order.CancelReason = req.Reason

	return &checkout.CancelledOrder{
		OrderID:     req.OrderID,
		TenantID:    req.TenantID,
		OrderNumber: po.Order.OrderNumber,
		TicketID:    po.Order.TicketID,
		TotalCents:  po.Order.TotalCents,
		CancelledAt: now,
	}, nil
}

func (m *memStore) stockOf(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) entryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memStore) ledgerNet(tenantID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var net int64
	for _, e := range m.entries {
		if e.tenantID != tenantID {
			continue
		}
		if e.entryType == "SALE" {
			net += e.amountCents
		} else {
			net -= e.amountCents
		}
	}
	return net
}

func newEngine(ms *memStore) *checkout.Engine {
	return &checkout.Engine{Catalog: ms, Tax: ms, Store: ms}
}

func commitReq(items ...checkout.CommitItem) checkout.CommitRequest {
	return checkout.CommitRequest{
		TenantID:      "t1",
		UserID:        "u1",
		Items:         items,
		PaymentMethod: "cash",
		OrderType:     "takeaway",
	}
}

func TestCommitRejectsEmptyOrder(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	_, err := e.Commit(context.Background(), commitReq())
	require.ErrorIs(t, err, checkout.ErrEmptyOrder)
	assert.Empty(t, ms.orders)
	assert.Zero(t, ms.entryCount())
}

func TestCommitRejectsNonPositiveQuantity(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	for _, qty := range []int{0, -1} {
		_, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: qty}))
		var iq *checkout.InvalidQuantityError
		require.ErrorAs(t, err, &iq)
		assert.Equal(t, "p1", iq.ProductID)
	}
	assert.Equal(t, 5, ms.stockOf("p1"))
}

func TestCommitRejectsMissingPaymentMethod(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	req := commitReq(checkout.CommitItem{ProductID: "p1", Qty: 1})
	req.PaymentMethod = ""
	_, err := e.Commit(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrInvalidPayment)
}

func TestCommitRejectsUnknownAndForeignProducts(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	// id that does not exist
	_, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "nope", Qty: 1}))
	var up *catalog.UnknownProductError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "nope", up.ProductID)

	// id owned by another tenant must look identical to a missing one
	_, err = e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 1},
		checkout.CommitItem{ProductID: "p3", Qty: 1},
	))
	require.ErrorAs(t, err, &up)
	assert.Equal(t, "p3", up.ProductID)

	// no side effects anywhere
	assert.Empty(t, ms.orders)
	assert.Zero(t, ms.entryCount())
	assert.Equal(t, 5, ms.stockOf("p1"))
	assert.Equal(t, 9, ms.stockOf("p3"))
}

func TestCommitWorkedExample(t *testing.T) {
	// tenant t1: p1 tracked, stock=5, price 2.00; tax 10%
	ms := newMemStore()
	e := newEngine(ms)

	rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 3}))
	require.NoError(t, err)

	assert.Equal(t, int64(660), rcpt.TotalCents)
	assert.Equal(t, int64(600), rcpt.SubtotalCents)
	assert.Equal(t, int64(60), rcpt.TaxCents)
	assert.Equal(t, int64(1), rcpt.OrderNumber)
	assert.NotEmpty(t, rcpt.TicketID)
	assert.Equal(t, 2, ms.stockOf("p1"))
	assert.Equal(t, int64(660), ms.ledgerNet("t1"))
	assert.Equal(t, 1, ms.entryCount())

	o := ms.orders[rcpt.OrderID]
	require.NotNil(t, o)
	assert.Equal(t, checkout.StatusCompleted, o.Order.Status)
	assert.Equal(t, int64(660), o.Payment.AmountCents)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Espresso", o.Items[0].Name)
	assert.Equal(t, int64(200), o.Items[0].PriceCents)
	assert.Equal(t, int64(600), o.Items[0].SubtotalCents)
}

func TestCommitAggregatesRepeatedLines(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	// 3+3 across two lines exceeds stock 5 even though each line fits
	_, err := e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 3},
		checkout.CommitItem{ProductID: "p1", Qty: 3},
	))
	var is *stock.InsufficientStockError
	require.ErrorAs(t, err, &is)
	assert.Equal(t, "p1", is.ProductID)
	assert.Equal(t, 6, is.Requested)
	assert.Equal(t, 5, is.Available)
	assert.Equal(t, 5, ms.stockOf("p1"))

	// 2+3 fits exactly and keeps both lines as separate items
	rcpt, err := e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 2},
		checkout.CommitItem{ProductID: "p1", Qty: 3},
	))
	require.NoError(t, err)
	assert.Equal(t, 0, ms.stockOf("p1"))
	assert.Len(t, ms.orders[rcpt.OrderID].Items, 2)
}

func TestCommitUntrackedProductIgnoresStock(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p2", Qty: 500}))
	require.NoError(t, err)
	assert.Equal(t, int64(500*150+500*150/10), rcpt.TotalCents)
	assert.Empty(t, ms.orders[rcpt.OrderID].Deductions)
}

func TestCommitUnitPriceOverride(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	override := int64(100)
	rcpt, err := e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 2, UnitPriceCentsOver: &override},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(200), rcpt.SubtotalCents)
	assert.Equal(t, int64(100), ms.orders[rcpt.OrderID].Items[0].PriceCents)
}

func TestCommitRejectsNegativePriceOverride(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	bad := int64(-1)
	_, err := e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 1, UnitPriceCentsOver: &bad},
	))
	var ip *checkout.InvalidPriceError
	require.ErrorAs(t, err, &ip)
	assert.Equal(t, "p1", ip.ProductID)
	assert.False(t, checkout.Retryable(err))

	// rejected before any write
	assert.Empty(t, ms.orders)
	assert.Zero(t, ms.entryCount())
	assert.Equal(t, 5, ms.stockOf("p1"))
}

func TestCommitDeductionsLockInStableOrder(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	// cart order p1 then p0; deductions must come out sorted by product id
	// so every commit takes row locks in the same order
	rcpt, err := e.Commit(context.Background(), commitReq(
		checkout.CommitItem{ProductID: "p1", Qty: 1},
		checkout.CommitItem{ProductID: "p0", Qty: 2},
	))
	require.NoError(t, err)

	ded := ms.orders[rcpt.OrderID].Deductions
	require.Len(t, ded, 2)
	assert.Equal(t, "p0", ded[0].ProductID)
	assert.Equal(t, "p1", ded[1].ProductID)

	// line items keep the cart's own order
	items := ms.orders[rcpt.OrderID].Items
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p0", items[1].ProductID)
}

func TestCommitInfrastructureFailureLeavesNoState(t *testing.T) {
	ms := newMemStore()
	ms.failPersist = errors.New("connection refused")
	e := newEngine(ms)

	_, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 1}))
	require.Error(t, err)
	assert.True(t, checkout.Retryable(err))
	assert.Empty(t, ms.orders)
	assert.Zero(t, ms.entryCount())
	assert.Equal(t, 5, ms.stockOf("p1"))
}

func TestCancelRoundTripRestoresStock(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 3}))
	require.NoError(t, err)
	require.Equal(t, 2, ms.stockOf("p1"))

	co, err := e.Cancel(context.Background(), checkout.CancelRequest{
		TenantID: "t1", OrderID: rcpt.OrderID, UserID: "u2", Reason: "customer walked out",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, ms.stockOf("p1"))
	assert.Equal(t, int64(660), co.TotalCents)
	assert.Equal(t, int64(0), ms.ledgerNet("t1")) // SALE 660 - REFUND 660
	assert.Equal(t, checkout.StatusCancelled, ms.orders[rcpt.OrderID].Order.Status)
	assert.Equal(t, "u2", ms.orders[rcpt.OrderID].Order.CancelledBy)
}

func TestCancelTwiceIsGuarded(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 3}))
	require.NoError(t, err)

	req := checkout.CancelRequest{TenantID: "t1", OrderID: rcpt.OrderID, UserID: "u1"}
	_, err = e.Cancel(context.Background(), req)
	require.NoError(t, err)

	entriesAfterFirst := ms.entryCount()
	_, err = e.Cancel(context.Background(), req)
	require.ErrorIs(t, err, checkout.ErrAlreadyCancelled)
	assert.False(t, checkout.Retryable(err))

	// no double restore, no second refund
	assert.Equal(t, 5, ms.stockOf("p1"))
	assert.Equal(t, entriesAfterFirst, ms.entryCount())
}

func TestCancelScopedToTenant(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 1}))
	require.NoError(t, err)

	_, err = e.Cancel(context.Background(), checkout.CancelRequest{TenantID: "t2", OrderID: rcpt.OrderID, UserID: "u1"})
	require.ErrorIs(t, err, checkout.ErrOrderNotFound)

	_, err = e.Cancel(context.Background(), checkout.CancelRequest{TenantID: "t1", OrderID: "missing", UserID: "u1"})
	require.ErrorIs(t, err, checkout.ErrOrderNotFound)
}

func TestConcurrentCommitsForLastUnit(t *testing.T) {
	ms := newMemStore()
	p := ms.products["p1"]
	p.Stock = 1
	ms.products["p1"] = p
	e := newEngine(ms)

	var g errgroup.Group
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			_, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p1", Qty: 1}))
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, insufficient int
	for _, err := range results {
		if err == nil {
			ok++
			continue
		}
		var is *stock.InsufficientStockError
		require.ErrorAs(t, err, &is)
		insufficient++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 0, ms.stockOf("p1"))
}

func TestConcurrentCommitsGetDistinctOrderNumbers(t *testing.T) {
	ms := newMemStore()
	e := newEngine(ms)

	const n = 20
	numbers := make([]int64, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			rcpt, err := e.Commit(context.Background(), commitReq(checkout.CommitItem{ProductID: "p2", Qty: 1}))
			if err != nil {
				return err
			}
			numbers[i] = rcpt.OrderNumber
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]bool, n)
	for _, num := range numbers {
		assert.False(t, seen[num], "order number %d allocated twice", num)
		seen[num] = true
		assert.GreaterOrEqual(t, num, int64(1))
		assert.LessOrEqual(t, num, int64(n))
	}
}
