package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"salez/internal/domain"
)

// Sender is satisfied by *Client.
type Sender interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// EventPublisher publishes domain events on the orders topic and mirrors a
// short notification on the fanout.
type EventPublisher struct {
	sender  Sender
	topic   string
	source  string
	timeout time.Duration
}

func NewEventPublisher(s Sender, topic, source string) *EventPublisher {
	return &EventPublisher{sender: s, topic: topic, source: source, timeout: 5 * time.Second}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, o domain.Order) error {
	ev := domain.NewOrderCreatedEvent(o)
	if err := p.publishJSON(ctx, OrdersExchange, domain.EventOrderCreated, o.ID, ev); err != nil {
		return err
	}
	return p.publishJSON(ctx, NotificationsExchange, "", o.ID, domain.Notification{
		Topic:     p.topic,
		Kind:      domain.EventOrderCreated,
		Title:     "Pesanan baru",
		Body:      fmt.Sprintf("Pesanan %s (%d item) dari %s", o.ID, ev.ItemCount, o.CustomerName),
		Reference: o.ID,
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) DayClosed(ctx context.Context, ev domain.DayClosedEvent) error {
	if err := p.publishJSON(ctx, OrdersExchange, domain.EventDayClosed, ev.Date, ev); err != nil {
		return err
	}
	return p.publishJSON(ctx, NotificationsExchange, "", ev.Date, domain.Notification{
		Topic:     p.topic,
		Kind:      domain.EventDayClosed,
		Title:     "Tutup hari",
		Body:      fmt.Sprintf("Ringkasan %s: %d pesanan, pendapatan %d", ev.Date, ev.OrdersClosed, ev.TotalRevenue),
		Reference: ev.Date,
		Timestamp: time.Now().UTC(),
	})
}

func (p *EventPublisher) publishJSON(ctx context.Context, exchange, key, correlationID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     uuid.NewString(),
		CorrelationId: correlationID,
		Timestamp:     time.Now().UTC(),
		Headers:       amqp.Table{"x-source": p.source},
		Body:          body,
	}
	if err := p.sender.Publish(ctx, exchange, key, msg); err != nil {
		return fmt.Errorf("publish %s to %s: %w", key, exchange, err)
	}
	return nil
}
