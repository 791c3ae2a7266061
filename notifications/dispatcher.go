// Package notifications fans committed order changes out to the real-time
// hub, the message broker and the analytics stream, and renders the
// customer-facing messages sent by the consumers.
package notifications

import (
	"context"
	"log/slog"
	"time"

	"marketplace-api/middlewares"
	"marketplace-api/models"
	"marketplace-api/realtime"
	"marketplace-api/tasks"
)

type Submitter interface {
	Submit(name string, fn tasks.Func) bool
}

type Broadcaster interface {
	Broadcast(ctx context.Context, payload any, rooms ...string) error
}

type Broker interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error
	PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

type Stream interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// Sinks lists the enabled outputs; a nil field is skipped.
type Sinks struct {
	Hub    Broadcaster
	Broker Broker
	Stream Stream
}

type Dispatcher struct {
	queue             Submitter
	sinks             Sinks
	paymentCheckDelay time.Duration
}

func NewDispatcher(queue Submitter, sinks Sinks, paymentCheckDelay time.Duration) *Dispatcher {
	return &Dispatcher{queue: queue, sinks: sinks, paymentCheckDelay: paymentCheckDelay}
}

// OrderChanged queues the fan-out of ev and returns immediately. Sink
// failures are logged and counted, never reported to the caller.
func (d *Dispatcher) OrderChanged(ev models.OrderEvent) {
	d.queue.Submit(string(ev.Type), func(ctx context.Context) error {
		if d.sinks.Hub != nil {
			d.deliver("websocket", ev, d.sinks.Hub.Broadcast(ctx, ev, Rooms(ev)...))
		}
		if d.sinks.Broker != nil {
			d.deliver("rabbitmq", ev, d.sinks.Broker.PublishOrderEvent(ctx, ev, Priority(ev.Type)))
		}
		if d.sinks.Stream != nil {
			d.deliver("kafka", ev, d.sinks.Stream.Publish(ctx, ev))
		}
		return nil
	})
}

// SchedulePaymentCheck asks the broker to re-deliver o after the payment
// window so unpaid orders can be expired.
func (d *Dispatcher) SchedulePaymentCheck(o *models.Order) {
	if d.sinks.Broker == nil || o.PaymentMethod == models.PaymentCashOnDelivery {
		return
	}
	ev := models.NewOrderEvent(models.EventPaymentCheck, o)
	d.queue.Submit(string(ev.Type), func(ctx context.Context) error {
		d.deliver("rabbitmq_delay", ev, d.sinks.Broker.PublishDelayedEvent(ctx, ev, d.paymentCheckDelay))
		return nil
	})
}

func (d *Dispatcher) deliver(sink string, ev models.OrderEvent, err error) {
	if err == nil {
		return
	}
	middlewares.RecordSideEffectFailure(sink)
	slog.Warn("order side effect failed",
		slog.String("sink", sink),
		slog.String("event", string(ev.Type)),
		slog.Int64("order_id", ev.OrderID),
		slog.String("error", err.Error()))
}

// Rooms lists the websocket rooms interested in ev.
func Rooms(ev models.OrderEvent) []string {
	rooms := []string{
		realtime.OrderRoom(ev.OrderID),
		realtime.UserRoom(ev.UserID),
		realtime.ShopRoom(ev.ShopID),
	}
	if ev.DeliveryPersonID != nil {
		rooms = append(rooms, realtime.UserRoom(*ev.DeliveryPersonID))
	}
	return rooms
}

// Priority orders the broker queue: money and cancellations first.
func Priority(t models.OrderEventType) uint8 {
	switch t {
	case models.EventOrderCancelled, models.EventOrderRefunded, models.EventPaymentFailed,
		models.EventCancellationRequested:
		return 8
	case models.EventOrderCreated, models.EventPaymentSucceeded:
		return 5
	}
	return 1
}
