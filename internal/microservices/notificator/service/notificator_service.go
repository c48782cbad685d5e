package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"salez/internal/common/logger"
	"salez/internal/common/metrics"
	"salez/internal/connections/rabbitmq"
	"salez/internal/domain"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

// Channel is the consuming side of *amqp.Channel.
type Channel interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Cancel(consumer string, noWait bool) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	NotifyCancel(c chan string) chan string
}

// Sink receives every well-formed notification.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// LogSink writes notifications to the log. It is the only sink the
// subscriber ships with; push gateways plug in behind the same interface.
type LogSink struct{ lg *logger.Logger }

func NewLogSink(lg *logger.Logger) *LogSink { return &LogSink{lg: lg} }

func (s *LogSink) Deliver(_ context.Context, n domain.Notification) error {
	s.lg.Info("notification_received", map[string]any{
		"topic":     n.Topic,
		"kind":      n.Kind,
		"title":     n.Title,
		"body":      n.Body,
		"reference": n.Reference,
	})
	return nil
}

type NotificatorServiceInterface interface {
	Notify(ctx context.Context) error
}

type NotificatorService struct {
	ch       Channel
	sink     Sink
	lg       *logger.Logger
	queue    string
	tag      string
	prefetch int
	topic    string
}

// NewNotificatorService consumes rabbitmq.NotificationsQueue. An empty topic
// accepts every notification.
func NewNotificatorService(ch Channel, sink Sink, topic string, prefetch int, lg *logger.Logger) *NotificatorService {
	if prefetch <= 0 {
		prefetch = 1
	}
	return &NotificatorService{
		ch:       ch,
		sink:     sink,
		lg:       lg,
		queue:    rabbitmq.NotificationsQueue,
		tag:      "notificator",
		prefetch: prefetch,
		topic:    topic,
	}
}

// Notify consumes until ctx ends or the broker closes the channel.
func (ns *NotificatorService) Notify(ctx context.Context) error {
	if err := ns.ch.Qos(ns.prefetch, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}
	closed := ns.ch.NotifyClose(make(chan *amqp.Error, 1))
	cancelled := ns.ch.NotifyCancel(make(chan string, 1))

	msgs, err := ns.ch.Consume(ns.queue, ns.tag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", ns.queue, err)
	}
	ns.lg.Info("consuming", map[string]any{"queue": ns.queue, "prefetch": ns.prefetch, "topic": ns.topic})

	for {
		select {
		case <-ctx.Done():
			_ = ns.ch.Cancel(ns.tag, false)
			ns.lg.Info("graceful_shutdown", nil)
			return nil
		case e, ok := <-closed:
			if !ok || e == nil {
				return errors.New("amqp channel closed")
			}
			ns.lg.Error("amqp_channel_closed", e, map[string]any{"code": e.Code, "reason": e.Reason})
			return e
		case tag := <-cancelled:
			ns.lg.Warn("consumer_canceled", map[string]any{"tag": tag})
			return fmt.Errorf("consumer %s canceled by broker", tag)
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			ns.settle(d, ns.processOne(ctx, d))
		}
	}
}

func (ns *NotificatorService) processOne(ctx context.Context, d amqp.Delivery) error {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		ns.lg.Warn("notification_malformed", map[string]any{"message_id": d.MessageId, "error": err.Error()})
		return ErrDLQ
	}
	if strings.TrimSpace(n.Kind) == "" {
		ns.lg.Warn("notification_malformed", map[string]any{"message_id": d.MessageId, "error": "missing kind"})
		return ErrDLQ
	}
	if ns.topic != "" && n.Topic != ns.topic {
		ns.lg.Debug("notification_skipped", map[string]any{"message_id": d.MessageId, "topic": n.Topic})
		return nil
	}
	if err := ns.sink.Deliver(ctx, n); err != nil {
		ns.lg.Error("notification_delivery_failed", err, map[string]any{"message_id": d.MessageId, "kind": n.Kind})
		return ErrRequeue
	}
	return nil
}

func (ns *NotificatorService) settle(d amqp.Delivery, err error) {
	var (
		result string
		ackErr error
	)
	switch {
	case err == nil:
		result, ackErr = "ack", d.Ack(false)
	case errors.Is(err, ErrDLQ):
		result, ackErr = "dead_letter", d.Nack(false, false)
	default:
		result, ackErr = "requeue", d.Nack(false, true)
	}
	metrics.RecordNotification(result)
	if ackErr != nil {
		ns.lg.Error("settle_failed", ackErr, map[string]any{"message_id": d.MessageId, "result": result})
	}
}
