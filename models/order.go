package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending               OrderStatus = "PENDING"
	StatusAccepted              OrderStatus = "ACCEPTED"
	StatusPreparing             OrderStatus = "PREPARING"
	StatusReadyForPickup        OrderStatus = "READY_FOR_PICKUP"
	StatusInDelivery            OrderStatus = "IN_DELIVERY"
	StatusDelivered             OrderStatus = "DELIVERED"
	StatusCancellationRequested OrderStatus = "CANCELLATION_REQUESTED"
	StatusCancelled             OrderStatus = "CANCELLED"
	StatusRefunded              OrderStatus = "REFUNDED"
)

var AllOrderStatuses = []OrderStatus{
	StatusPending, StatusAccepted, StatusPreparing, StatusReadyForPickup, StatusInDelivery,
	StatusDelivered, StatusCancellationRequested, StatusCancelled, StatusRefunded,
}

func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further lifecycle transitions apply
// (DELIVERED can still be refunded).
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRefunded
}

type PaymentMethod string

const (
	PaymentCard           PaymentMethod = "CARD"
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentWallet         PaymentMethod = "WALLET"
	PaymentUPI            PaymentMethod = "UPI"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCashOnDelivery, PaymentWallet, PaymentUPI:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Address struct {
	Line1      string  `json:"line1" binding:"required"`
	City       string  `json:"city" binding:"required"`
	PostalCode string  `json:"postal_code"`
	Latitude   float64 `json:"latitude" binding:"omitempty,latitude"`
	Longitude  float64 `json:"longitude" binding:"omitempty,longitude"`
}

type Order struct {
	ID                  int64           `json:"id"`
	OrderNumber         string          `json:"order_number"`
	UserID              int64           `json:"user_id"`
	ShopID              int64           `json:"shop_id"`
	ShopName            string          `json:"shop_name"`
	DeliveryAddress     Address         `json:"delivery_address"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DeliveryFee         decimal.Decimal `json:"delivery_fee"`
	ServiceFee          decimal.Decimal `json:"service_fee"`
	Tax                 decimal.Decimal `json:"tax"`
	Discount            decimal.Decimal `json:"discount"`
	Tip                 decimal.Decimal `json:"tip"`
	Total               decimal.Decimal `json:"total"`
	PaymentMethod       PaymentMethod   `json:"payment_method"`
	PaymentID           string          `json:"payment_id,omitempty"`
	PaymentStatus       PaymentStatus   `json:"payment_status"`
	Status              OrderStatus     `json:"status"`
	DeliveryPersonID    *int64          `json:"delivery_person_id,omitempty"`
	CancellationReason  *string         `json:"cancellation_reason,omitempty"`
	Items               []OrderItem     `json:"items"`
	Version             int             `json:"-"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	DeliveredAt         *time.Time      `json:"delivered_at,omitempty"`
	EstimatedDeliveryAt *time.Time      `json:"estimated_delivery_at,omitempty"`
}

// ComputeTotal applies subtotal - discount + deliveryFee + serviceFee + tax.
// Tip is deliberately excluded.
func ComputeTotal(subtotal, discount, deliveryFee, serviceFee, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(deliveryFee).Add(serviceFee).Add(tax)
}

// RecomputeTotal refreshes Total from the monetary components.
func (o *Order) RecomputeTotal() {
	o.Total = ComputeTotal(o.Subtotal, o.Discount, o.DeliveryFee, o.ServiceFee, o.Tax)
}

// TotalConsistent reports whether the stored total honours the invariant.
func (o *Order) TotalConsistent() bool {
	return o.Total.Equal(ComputeTotal(o.Subtotal, o.Discount, o.DeliveryFee, o.ServiceFee, o.Tax))
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Refund struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"order_id"`
	RefundID  string          `json:"refund_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type OrderFilter struct {
	UserID *int64
	ShopID *int64
	Status *OrderStatus
	Limit  int
	Offset int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps paging to the values the repository will apply.
func (f *OrderFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > MaxPageSize {
		f.Limit = DefaultPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// StatusStats is one row of the admin analytics summary.
type StatusStats struct {
	Status OrderStatus     `json:"status"`
	Count  int64           `json:"count"`
	Gross  decimal.Decimal `json:"gross"`
}
