package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderEventType string

const (
	EventOrderCreated          OrderEventType = "order.created"
	EventOrderStatusChanged    OrderEventType = "order.status_changed"
	EventCancellationRequested OrderEventType = "order.cancellation_requested"
	EventOrderCancelled        OrderEventType = "order.cancelled"
	EventOrderRefunded         OrderEventType = "order.refunded"
	EventDeliveryAssigned      OrderEventType = "order.delivery_assigned"
	EventFeesUpdated           OrderEventType = "order.fees_updated"
	EventTipUpdated            OrderEventType = "order.tip_updated"
	EventPaymentSucceeded      OrderEventType = "payment.succeeded"
	EventPaymentFailed         OrderEventType = "payment.failed"
	EventPaymentCheck          OrderEventType = "order.payment_check"
)

// OrderEvent is the payload fanned out to sockets, the message broker and
// notification senders after a committed change.
type OrderEvent struct {
	Type             OrderEventType  `json:"type"`
	OrderID          int64           `json:"order_id"`
	OrderNumber      string          `json:"order_number"`
	Status           OrderStatus     `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	UserID           int64           `json:"user_id"`
	ShopID           int64           `json:"shop_id"`
	DeliveryPersonID *int64          `json:"delivery_person_id,omitempty"`
	Total            decimal.Decimal `json:"total"`
	Occurred         time.Time       `json:"occurred"`
}

func NewOrderEvent(t OrderEventType, o *Order) OrderEvent {
	return OrderEvent{
		Type:             t,
		OrderID:          o.ID,
		OrderNumber:      o.OrderNumber,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		UserID:           o.UserID,
		ShopID:           o.ShopID,
		DeliveryPersonID: o.DeliveryPersonID,
		Total:            o.Total,
		Occurred:         time.Now().UTC(),
	}
}
