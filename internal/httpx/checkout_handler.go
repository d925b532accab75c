package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/warungpos/go-pos-checkout/internal/catalog"
	"github.com/warungpos/go-pos-checkout/internal/checkout"
	kafkax "github.com/warungpos/go-pos-checkout/internal/kafka"
	"github.com/warungpos/go-pos-checkout/internal/ledger"
	"github.com/warungpos/go-pos-checkout/internal/pricing"
	"github.com/warungpos/go-pos-checkout/internal/redisx"
	"github.com/warungpos/go-pos-checkout/internal/stock"
	"github.com/warungpos/go-pos-checkout/internal/tenant"
)

type CheckoutHandler struct {
	Engine        *checkout.Engine
	Repo          *checkout.Repo
	Catalog       *catalog.Reader
	DB            *pgxpool.Pool
	Redis         *redis.Client
	Completed     *kafkax.Producer
	Cancelled     *kafkax.Producer
	Service       string
	CommitTimeout time.Duration
}

func (h *CheckoutHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.commitOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
	r.Get("/ledger/summary", h.ledgerSummary)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	ProductID string `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Validation
// failures are 4xx and carry enough detail to act on; only infrastructure
// failures are marked retryable.
func writeError(w http.ResponseWriter, err error) {
	var (
		iq *checkout.InvalidQuantityError
		ip *checkout.InvalidPriceError
		up *catalog.UnknownProductError
		is *stock.InsufficientStockError
	)
	switch {
	case errors.Is(err, checkout.ErrEmptyOrder):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error(), Code: "EMPTY_ORDER"})
	case errors.Is(err, checkout.ErrInvalidPayment):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error(), Code: "INVALID_PAYMENT"})
	case errors.As(err, &iq):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error(), Code: "INVALID_QUANTITY", ProductID: iq.ProductID})
	case errors.As(err, &ip):
		writeJSON(w, http.StatusBadRequest, errBody{Error: err.Error(), Code: "INVALID_PRICE", ProductID: ip.ProductID})
	case errors.As(err, &up):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: err.Error(), Code: "UNKNOWN_PRODUCT", ProductID: up.ProductID})
	case errors.As(err, &is):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "INSUFFICIENT_STOCK", ProductID: is.ProductID, Available: &is.Available})
	case errors.Is(err, checkout.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, errBody{Error: err.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, checkout.ErrAlreadyCancelled):
		writeJSON(w, http.StatusConflict, errBody{Error: err.Error(), Code: "ALREADY_CANCELLED"})
	case errors.Is(err, tenant.ErrNotFound):
		writeJSON(w, http.StatusUnprocessableEntity, errBody{Error: err.Error(), Code: "UNKNOWN_TENANT"})
	default:
		writeJSON(w, http.StatusInternalServerError, errBody{Error: "internal failure", Code: "INTERNAL", Retryable: checkout.Retryable(err)})
	}
}

type commitResp struct {
	OrderID     string `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	TicketID    string `json:"ticket_id"`
	TotalCents  int64  `json:"total_cents"`
	Total       string `json:"total"`
}

func (h *CheckoutHandler) commitOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json", Code: "BAD_REQUEST"})
		return
	}
	if req.TenantID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "tenant_id and user_id required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.CommitTimeout)
	defer cancel()

	rcpt, err := h.Engine.Commit(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, req.TenantID, rcpt.OrderID, rcpt.OrderNumber, checkout.StatusCompleted)
	h.publishCompleted(r, req, rcpt)

	writeJSON(w, http.StatusCreated, commitResp{
		OrderID:     rcpt.OrderID,
		OrderNumber: rcpt.OrderNumber,
		TicketID:    rcpt.TicketID,
		TotalCents:  rcpt.TotalCents,
		Total:       pricing.FormatCents(rcpt.TotalCents),
	})
}

func (h *CheckoutHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req checkout.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "invalid json", Code: "BAD_REQUEST"})
		return
	}
	req.OrderID = chi.URLParam(r, "id")
	if req.TenantID == "" || req.UserID == "" || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "tenant_id, user_id and order id required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.CommitTimeout)
	defer cancel()

	co, err := h.Engine.Cancel(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheStatus(ctx, co.TenantID, co.OrderID, co.OrderNumber, checkout.StatusCancelled)
	h.publishCancelled(r, req, co)

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     co.OrderID,
		"status":       checkout.StatusCancelled,
		"cancelled_at": co.CancelledAt,
	})
}

func (h *CheckoutHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	tenantID := r.URL.Query().Get("tenant_id")
	if orderID == "" || tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "order id and tenant_id required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache dulu, DB sebagai fallback; key dipartisi per tenant supaya cache
	// hit tidak bocor lintas tenant
	key := redisx.OrderStatusKey(tenantID, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(s))
		return
	}

	sum, err := h.Repo.OrderSummary(ctx, tenantID, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	b, _ := json.Marshal(sum)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type productResp struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Price      string `json:"price"`
	TrackStock bool   `json:"track_stock"`
	Stock      int    `json:"stock"`
}

func (h *CheckoutHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "tenant_id required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.List(ctx, tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody{Error: err.Error(), Code: "INTERNAL", Retryable: true})
		return
	}
	out := make([]productResp, 0, len(ps))
	for _, p := range ps {
		out = append(out, productResp{
			ID:         p.ID,
			Name:       p.Name,
			PriceCents: p.PriceCents,
			Price:      pricing.FormatCents(p.PriceCents),
			TrackStock: p.TrackStock,
			Stock:      p.Stock,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CheckoutHandler) ledgerSummary(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		writeJSON(w, http.StatusBadRequest, errBody{Error: "tenant_id required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	t, err := ledger.TotalsForTenant(ctx, h.DB, tenantID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errBody{Error: err.Error(), Code: "INTERNAL", Retryable: true})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *CheckoutHandler) cacheStatus(ctx context.Context, tenantID, orderID string, number int64, st checkout.Status) {
	key := redisx.OrderStatusKey(tenantID, orderID)
	b, _ := json.Marshal(map[string]any{"order_id": orderID, "order_number": number, "status": st})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}

func (h *CheckoutHandler) publishCompleted(r *http.Request, req checkout.CommitRequest, rcpt checkout.Receipt) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: rcpt.OrderID,
		Payload: kafkax.MustMarshal(checkout.OrderCompletedPayload{
			OrderID:       rcpt.OrderID,
			TenantID:      req.TenantID,
			OrderNumber:   rcpt.OrderNumber,
			TicketID:      rcpt.TicketID,
			OrderType:     req.OrderType,
			PaymentMethod: req.PaymentMethod,
			SubtotalCents: rcpt.SubtotalCents,
			TaxCents:      rcpt.TaxCents,
			TotalCents:    rcpt.TotalCents,
			Items:         rcpt.Items,
		}),
	}
	h.Completed.Publish(checkout.PartitionKey(rcpt.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *CheckoutHandler) publishCancelled(r *http.Request, req checkout.CancelRequest, co *checkout.CancelledOrder) {
	ev := checkout.Envelope{
		EventID:       uuid.NewString(),
		EventType:     checkout.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: co.OrderID,
		Payload: kafkax.MustMarshal(checkout.OrderCancelledPayload{
			OrderID:     co.OrderID,
			TenantID:    co.TenantID,
			OrderNumber: co.OrderNumber,
			TotalCents:  co.TotalCents,
			CancelledBy: req.UserID,
			Reason:      req.Reason,
		}),
	}
	h.Cancelled.Publish(checkout.PartitionKey(co.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(checkout.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
