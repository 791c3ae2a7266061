// Package services holds the order lifecycle and payment orchestration rules.
// Handlers call into it; it talks to storage, the payment gateway and the
// notification pipeline through the interfaces below.
package services

import (
	"context"
	"time"

	"marketplace-api/models"
	"marketplace-api/payments"
)

//go:generate mockery --name=OrderRepository --output=./mocks --case=underscore
type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id int64) (*models.Order, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	UpdateWithRefund(ctx context.Context, o *models.Order, refund *models.Refund) error
	Stats(ctx context.Context) ([]models.StatusStats, error)
}

//go:generate mockery --name=CatalogRepository --output=./mocks --case=underscore
type CatalogRepository interface {
	GetShop(ctx context.Context, id int64) (*models.Shop, error)
	GetProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error)
}

//go:generate mockery --name=UserRepository --output=./mocks --case=underscore
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

//go:generate mockery --name=PaymentMethodRepository --output=./mocks --case=underscore
type PaymentMethodRepository interface {
	ListActive(ctx context.Context, userID int64) ([]models.UserPaymentMethod, error)
	Create(ctx context.Context, m *models.UserPaymentMethod) error
	SetDefault(ctx context.Context, userID, id int64) error
	Deactivate(ctx context.Context, userID, id int64) error
}

// OrderCache holds read snapshots. Get returns (nil, nil) on a miss.
//
//go:generate mockery --name=OrderCache --output=./mocks --case=underscore
type OrderCache interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
	Set(ctx context.Context, o *models.Order) error
	Invalidate(ctx context.Context, id int64) error
}

//go:generate mockery --name=PaymentGateway --output=./mocks --case=underscore
type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, req payments.IntentRequest) (*payments.PaymentIntentResult, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*payments.PaymentResult, error)
	GetPaymentIntentStatus(ctx context.Context, intentID string) (*payments.PaymentResult, error)
	ProcessRefund(ctx context.Context, req payments.RefundRequest) (*payments.RefundResult, error)
	VerifyWebhook(provider string, payload []byte, signature string) (*payments.WebhookEvent, error)
}

// EventPublisher receives committed order changes. Implementations must not
// block and must not fail the caller.
//
//go:generate mockery --name=EventPublisher --output=./mocks --case=underscore
type EventPublisher interface {
	OrderChanged(ev models.OrderEvent)
	SchedulePaymentCheck(o *models.Order)
}

//go:generate mockery --name=WebhookDeduper --output=./mocks --case=underscore
type WebhookDeduper interface {
	FirstDelivery(ctx context.Context, provider, eventID string) (bool, error)
}

//go:generate mockery --name=TokenIssuer --output=./mocks --case=underscore
type TokenIssuer interface {
	Issue(userID int64, role models.Role) (string, time.Time, error)
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID int64
	Role   models.Role
}

func (a Actor) Is(role models.Role) bool { return a.Role == role }
