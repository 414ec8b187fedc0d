// Package notify is the fire-and-forget notification sink. Every method
// logs and swallows delivery failures; a lost email or event must never
// fail or roll back the business operation that triggered it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"storefront/internal/domain"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EmailLookup resolves a buyer id to an email address. The user store is
// owned by the excluded account layer, so it is injected as a hook; a nil
// hook disables buyer-facing email.
type EmailLookup func(ctx context.Context, userID uuid.UUID) (string, error)

type Notifier struct {
	email       EmailSender
	publisher   EventPublisher
	adminEmail  string
	lookupEmail EmailLookup
}

func NewNotifier(email EmailSender, publisher EventPublisher, adminEmail string, lookup EmailLookup) *Notifier {
	return &Notifier{
		email:       email,
		publisher:   publisher,
		adminEmail:  adminEmail,
		lookupEmail: lookup,
	}
}

func (n *Notifier) OrderPaid(ctx context.Context, order *domain.Order) {
	n.publish(ctx, "order.paid", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
		"total_cost":   order.TotalCost,
	})
	n.emailBuyer(ctx, order.BuyerID,
		"Payment received",
		fmt.Sprintf("We received your payment for order %s. Total: $%s.", order.OrderNumber, order.TotalCost.StringFixed(2)),
	)
}

func (n *Notifier) OrderCancelled(ctx context.Context, order *domain.Order, reason string) {
	n.publish(ctx, "order.cancelled", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
		"reason":       reason,
	})
	n.emailBuyer(ctx, order.BuyerID,
		"Order cancelled",
		fmt.Sprintf("Your order %s has been cancelled. Reason: %s", order.OrderNumber, reason),
	)
}

func (n *Notifier) CODConfirmed(ctx context.Context, order *domain.Order) {
	n.publish(ctx, "order.confirmed", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"buyer_id":     order.BuyerID,
	})
	n.emailBuyer(ctx, order.BuyerID,
		"Order confirmed",
		fmt.Sprintf("Your cash-on-delivery order %s has been placed and is awaiting confirmation.", order.OrderNumber),
	)
}

func (n *Notifier) RefundProcessed(ctx context.Context, order *domain.Order, refundID uuid.UUID, amount decimal.Decimal) {
	n.publish(ctx, "refund.processed", map[string]any{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"refund_id":    refundID,
		"amount":       amount,
	})
	n.emailBuyer(ctx, order.BuyerID,
		"Refund issued",
		fmt.Sprintf("A refund of $%s for order %s was credited to your store-credit wallet.", amount.StringFixed(2), order.OrderNumber),
	)
}

func (n *Notifier) AlertPaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) {
	n.publish(ctx, "payment.failed", map[string]any{
		"order_id": orderID,
		"reason":   reason,
	})
	n.emailAdmin("Payment failed",
		fmt.Sprintf("Payment for order %s failed: %s", orderID, reason))
}

func (n *Notifier) AlertStockDepleted(ctx context.Context, productName string) {
	n.publish(ctx, "stock.depleted", map[string]any{
		"product": productName,
		"at":      time.Now().UTC(),
	})
	n.emailAdmin("Stock depleted", fmt.Sprintf("Product %q is out of stock.", productName))
}

func (n *Notifier) publish(ctx context.Context, routingKey string, payload map[string]any) {
	if n.publisher == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal event", slog.String("routing_key", routingKey), slog.Any("error", err))
		return
	}
	if err := n.publisher.Publish(ctx, routingKey, body); err != nil {
		slog.Error("publish event", slog.String("routing_key", routingKey), slog.Any("error", err))
	}
}

func (n *Notifier) emailBuyer(ctx context.Context, buyerID uuid.UUID, subject, body string) {
	if n.email == nil || n.lookupEmail == nil {
		return
	}
	to, err := n.lookupEmail(ctx, buyerID)
	if err != nil || to == "" {
		slog.Warn("resolve buyer email", slog.String("buyer_id", buyerID.String()), slog.Any("error", err))
		return
	}
	if err := n.email.Send(to, subject, body); err != nil {
		slog.Error("send buyer email", slog.String("to", to), slog.Any("error", err))
	}
}

func (n *Notifier) emailAdmin(subject, body string) {
	if n.email == nil || n.adminEmail == "" {
		return
	}
	if err := n.email.Send(n.adminEmail, subject, body); err != nil {
		slog.Error("send admin email", slog.Any("error", err))
	}
}
