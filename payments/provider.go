// Package payments adapts the external payment processors behind one
// provider-neutral interface.
package payments

import (
	"context"

	"marketplace-api/models"

	"github.com/shopspring/decimal"
)

// Normalised intent states shared by every provider.
const (
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusFailed                = "failed"
	StatusCanceled              = "canceled"
)

// Normalised webhook event types.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

type IntentRequest struct {
	OrderID       int64
	OrderNumber   string
	Amount        decimal.Decimal
	Currency      string
	Method        models.PaymentMethod
	CustomerEmail string
}

type PaymentIntentResult struct {
	IntentID     string          `json:"payment_intent_id"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

type PaymentResult struct {
	Success  bool   `json:"success"`
	IntentID string `json:"payment_intent_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

type RefundRequest struct {
	OrderID   int64
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
	Reason    string
}

type RefundResult struct {
	Success  bool            `json:"success"`
	RefundID string          `json:"refund_id"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Message  string          `json:"message,omitempty"`
}

// WebhookEvent is a verified provider notification reduced to what
// reconciliation needs.
type WebhookEvent struct {
	ID            string
	Type          string
	PaymentID     string
	OrderID       int64
	Amount        decimal.Decimal
	FailureReason string
	RefundID      string
}

// Provider is implemented once per payment processor.
//
//go:generate mockery --name=Provider --output=./mocks --case=underscore
type Provider interface {
	Name() string
	SignatureHeader() string
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntentResult, error)
	ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*PaymentResult, error)
	GetPaymentIntentStatus(ctx context.Context, intentID string) (*PaymentResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error)
}
