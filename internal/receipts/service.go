// Package receipts is the post-commit dispatcher: it renders receipts from
// order-completed events. It runs outside the commit transaction on purpose;
// a failure here never affects the order.
package receipts

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/warungpos/go-pos-checkout/internal/checkout"
	kafkax "github.com/warungpos/go-pos-checkout/internal/kafka"
	"github.com/warungpos/go-pos-checkout/internal/pricing"
	"github.com/warungpos/go-pos-checkout/internal/redisx"
)

type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleOrderCompleted is the consumer handler for completed-order events.
func (s *Service) HandleOrderCompleted(ctx context.Context, m kafkago.Message) error {
	var env checkout.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != checkout.EventOrderCompleted {
		return nil
	}

	// dedup via event_id: konsumer bisa menerima event yang sama dua kali
	dkey := fmt.Sprintf(redisx.KeyDedup, "receipts", env.EventID)
	exists, _ := redisx.Exists(ctx, s.Redis, dkey)
	if exists {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	p, err := kafkax.UnwrapPayload[checkout.OrderCompletedPayload](env.Payload)
	if err != nil {
		return err
	}

	text := Render(p)
	rkey := fmt.Sprintf(redisx.KeyReceipt, p.OrderID)
	_ = s.Redis.Set(ctx, rkey, text, redisx.TTLReceipt).Err()

	log.Printf("%s: receipt ready: tenant=%s order=#%d ticket=%s total=%s",
		s.ServiceName, p.TenantID, p.OrderNumber, p.TicketID, pricing.FormatCents(p.TotalCents))
	return nil
}

// Render produces the plain-text receipt body.
func Render(p checkout.OrderCompletedPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ORDER #%d  (%s)\n", p.OrderNumber, p.TicketID)
	fmt.Fprintf(&b, "type: %s  payment: %s\n", p.OrderType, p.PaymentMethod)
	b.WriteString("--------------------------------\n")
	for _, it := range p.Items {
		fmt.Fprintf(&b, "%-20s x%-3d %8s\n", it.Name, it.Qty, pricing.FormatCents(it.SubtotalCents))
	}
	b.WriteString("--------------------------------\n")
	fmt.Fprintf(&b, "subtotal %23s\n", pricing.FormatCents(p.SubtotalCents))
	fmt.Fprintf(&b, "tax      %23s\n", pricing.FormatCents(p.TaxCents))
	fmt.Fprintf(&b, "TOTAL    %23s\n", pricing.FormatCents(p.TotalCents))
	return b.String()
}
