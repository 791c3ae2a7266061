package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"marketplace-api/config"
	"marketplace-api/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrDelayUnsupported is returned when the broker lacks the delayed-message plugin.
var ErrDelayUnsupported = errors.New("rabbitmq: delayed exchange not available")

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// PushNotification is the message handed to the push delivery workers.
type PushNotification struct {
	UserID  int64  `json:"user_id"`
	OrderID int64  `json:"order_id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
}

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     config.RabbitMQConfig

	mu      sync.Mutex
	pub     publisher
	delayed bool
}

func NewRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
		pub:     ch,
	}, nil
}

// SetupQueues declares the order exchange and its priority queue, the dead
// letter pair, the push queue and, when the broker supports it, the delay
// exchange feeding the order queue.
func (r *RabbitMQ) SetupQueues() error {
	dlx := r.Cfg.DeadLetterQueue + "_exchange"
	if err := r.Channel.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}
	if _, err := r.Channel.QueueDeclare(r.Cfg.DeadLetterQueue, true, false, false, false,
		amqp.Table{"x-queue-type": "classic"}); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}
	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(r.Cfg.OrderExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}
	if _, err := r.Channel.QueueDeclare(r.Cfg.OrderQueue, true, false, false, false, amqp.Table{
		"x-max-priority":            r.Cfg.MaxPriority,
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
	}); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}
	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(r.Cfg.PushQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare push queue: %w", err)
	}

	r.delayed = r.setupDelayExchange()
	return nil
}

// setupDelayExchange uses its own channel because a failed declare closes
// the channel it was issued on.
func (r *RabbitMQ) setupDelayExchange() bool {
	ch, err := r.Conn.Channel()
	if err != nil {
		slog.Warn("delay exchange setup skipped", slog.String("error", err.Error()))
		return false
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(r.Cfg.DelayExchange, "x-delayed-message", true, false, false, false,
		amqp.Table{"x-delayed-type": "direct"}); err != nil {
		slog.Warn("delayed exchange not supported, unpaid orders will not expire",
			slog.String("error", err.Error()))
		return false
	}
	if err := ch.QueueBind(r.Cfg.OrderQueue, r.Cfg.OrderQueue, r.Cfg.DelayExchange, false, nil); err != nil {
		slog.Warn("binding delay exchange failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	msg.Type = string(event.Type)
	msg.Priority = priority
	return r.publish(ctx, r.Cfg.OrderExchange, "", msg)
}

// PublishDelayedEvent delivers event to the order queue after delay.
func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	if !r.delayed {
		return ErrDelayUnsupported
	}
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	msg.Type = string(event.Type)
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}
	return r.publish(ctx, r.Cfg.DelayExchange, r.Cfg.OrderQueue, msg)
}

func (r *RabbitMQ) PublishPush(ctx context.Context, n PushNotification) error {
	msg, err := newPublishing(n)
	if err != nil {
		return err
	}
	return r.publish(ctx, "", r.Cfg.PushQueue, msg)
}

func (r *RabbitMQ) publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pub.PublishWithContext(ctx, exchange, key, false, false, msg)
}

func newPublishing(v any) (amqp.Publishing, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode message: %w", err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "application/json",
		MessageId:    uuid.NewString(),
		Body:         body,
	}, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			slog.Warn("closing rabbitmq channel", slog.String("error", err.Error()))
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			slog.Warn("closing rabbitmq connection", slog.String("error", err.Error()))
		}
	}
}
