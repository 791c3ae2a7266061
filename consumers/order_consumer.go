package consumers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"marketplace-api/config"
	"marketplace-api/logger"
	"marketplace-api/middlewares"
	"marketplace-api/models"
	"marketplace-api/notifications"
	"marketplace-api/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

const handleTimeout = 30 * time.Second

type OrderExpirer interface {
	ExpireUnpaid(ctx context.Context, id int64) (bool, error)
}

type PushPublisher interface {
	PublishPush(ctx context.Context, n rabbitmq.PushNotification) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// OrderConsumer turns broker events into customer notifications and runs
// the delayed payment checks.
type OrderConsumer struct {
	orders OrderExpirer
	push   PushPublisher
	users  UserLookup
	email  notifications.EmailSender
}

func NewOrderConsumer(orders OrderExpirer, push PushPublisher, users UserLookup, email notifications.EmailSender) *OrderConsumer {
	return &OrderConsumer{orders: orders, push: push, users: users, email: email}
}

// Start consumes the order queue and the dead letter queue until ctx ends
// or the channel closes.
func (c *OrderConsumer) Start(ctx context.Context, ch *amqp.Channel, cfg config.RabbitMQConfig) error {
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"marketplace-api", // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", cfg.OrderQueue, err)
	}
	go c.loop(ctx, msgs, c.ProcessOrderMessage)

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"marketplace-api-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		slog.Warn("dead letter consumer not registered", logger.Err(err))
		return nil
	}
	go c.loop(ctx, dlqMsgs, ProcessDeadLetter)
	return nil
}

func (c *OrderConsumer) loop(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(ctx, msg)
		}
	}
}

// ProcessOrderMessage acks handled events. Malformed bodies go straight to
// the dead letter queue; a failed handler is retried once.
func (c *OrderConsumer) ProcessOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing order message", slog.Any("panic", r))
			_ = msg.Nack(false, false)
		}
	}()

	var ev models.OrderEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil || ev.OrderID == 0 {
		slog.Warn("malformed order message", slog.String("body", string(msg.Body)), logger.Err(err))
		_ = msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	log := slog.With(slog.Int64("order_id", ev.OrderID), slog.String("event_type", string(ev.Type)))
	if err := c.Handle(ctx, ev); err != nil {
		log.Error("order event failed", slog.Bool("redelivered", msg.Redelivered), logger.Err(err))
		_ = msg.Nack(false, !msg.Redelivered)
		return
	}
	if err := msg.Ack(false); err != nil {
		log.Warn("ack failed", logger.Err(err))
	}
}

func (c *OrderConsumer) Handle(ctx context.Context, ev models.OrderEvent) error {
	if ev.Type == models.EventPaymentCheck {
		cancelled, err := c.orders.ExpireUnpaid(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		if cancelled {
			slog.InfoContext(ctx, "unpaid order cancelled", slog.Int64("order_id", ev.OrderID))
		}
		return nil
	}

	msg := notifications.MessageFor(ev)
	recipients := []int64{ev.UserID}
	if ev.Type == models.EventDeliveryAssigned && ev.DeliveryPersonID != nil {
		recipients = append(recipients, *ev.DeliveryPersonID)
	}
	for _, userID := range recipients {
		err := c.push.PublishPush(ctx, rabbitmq.PushNotification{
			UserID:  userID,
			OrderID: ev.OrderID,
			Title:   msg.Title,
			Body:    msg.Body,
		})
		if err != nil {
			return fmt.Errorf("push to user %d: %w", userID, err)
		}
	}

	if !msg.Email || c.email == nil {
		return nil
	}
	u, err := c.users.GetByID(ctx, ev.UserID)
	if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}
	if u.Email == "" {
		return nil
	}
	return c.email.SendEmail(ctx, u.Email, msg.Title, msg.HTML())
}

// ProcessDeadLetter records messages that exhausted their retries.
func ProcessDeadLetter(_ context.Context, msg amqp.Delivery) {
	middlewares.RecordDeadLetter()
	slog.Error("dead letter received",
		slog.String("type", msg.Type),
		slog.String("message_id", msg.MessageId),
		slog.String("body", string(msg.Body)),
	)
	if err := msg.Ack(false); err != nil {
		slog.Warn("dead letter ack failed", logger.Err(err))
	}
}
