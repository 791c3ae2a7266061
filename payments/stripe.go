package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"marketplace-api/apperrors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	return newStripeProvider(secretKey, webhookSecret, nil)
}

func newStripeProvider(secretKey, webhookSecret string, backends *stripe.Backends) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) SignatureHeader() string { return "Stripe-Signature" }

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntentResult, error) {
	amount := ToMinorUnits(req.Amount, req.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Description: stripe.String("Order " + req.OrderNumber),
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatInt(req.OrderID, 10))
	params.AddMetadata("order_number", req.OrderNumber)
	// a repriced order must not reuse the key
	params.SetIdempotencyKey(fmt.Sprintf("order-%d-%d-intent", req.OrderID, amount))

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, gatewayError(p.Name(), "create payment intent", err)
	}
	return &PaymentIntentResult{
		IntentID:     pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       FromMinorUnits(pi.Amount, string(pi.Currency)),
		Currency:     string(pi.Currency),
	}, nil
}

func (p *StripeProvider) ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentConfirmParams{}
	if methodID != "" {
		params.PaymentMethod = stripe.String(methodID)
	}
	params.Context = ctx

	pi, err := p.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return &PaymentResult{Success: false, IntentID: intentID, Status: StatusFailed, Message: stripeErr.Msg}, nil
		}
		return nil, gatewayError(p.Name(), "confirm payment intent", err)
	}
	return stripeResult(pi), nil
}

func (p *StripeProvider) GetPaymentIntentStatus(ctx context.Context, intentID string) (*PaymentResult, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		return nil, gatewayError(p.Name(), "get payment intent", err)
	}
	return stripeResult(pi), nil
}

func stripeResult(pi *stripe.PaymentIntent) *PaymentResult {
	res := &PaymentResult{
		Success:  pi.Status == stripe.PaymentIntentStatusSucceeded,
		IntentID: pi.ID,
		Status:   string(pi.Status),
	}
	if pi.LastPaymentError != nil {
		res.Message = pi.LastPaymentError.Msg
	}
	return res
}

func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
		Amount:        stripe.Int64(ToMinorUnits(req.Amount, req.Currency)),
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.FormatInt(req.OrderID, 10))
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	r, err := p.api.Refunds.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return &RefundResult{Success: false, Status: StatusFailed, Message: stripeErr.Msg}, nil
		}
		return nil, gatewayError(p.Name(), "refund", err)
	}
	ok := r.Status == stripe.RefundStatusSucceeded || r.Status == stripe.RefundStatusPending
	res := &RefundResult{
		Success:  ok,
		RefundID: r.ID,
		Status:   string(r.Status),
		Amount:   FromMinorUnits(r.Amount, string(r.Currency)),
	}
	if !ok && r.FailureReason != "" {
		res.Message = string(r.FailureReason)
	}
	return res, nil
}

func (p *StripeProvider) VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error) {
	if p.webhookSecret == "" {
		return nil, apperrors.GatewayUnavailable("stripe webhook secret not configured")
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, apperrors.InvalidSignature(err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, apperrors.Validation("malformed payment intent payload: %v", err)
		}
		out.PaymentID = pi.ID
		out.OrderID = orderIDFromMetadata(pi.Metadata["order_id"])
		out.Amount = amountOrZero(pi.Amount, string(pi.Currency))
		if pi.LastPaymentError != nil {
			out.FailureReason = pi.LastPaymentError.Msg
		}
	case "charge.refunded":
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, apperrors.Validation("malformed charge payload: %v", err)
		}
		if ch.PaymentIntent != nil {
			out.PaymentID = ch.PaymentIntent.ID
		}
		out.OrderID = orderIDFromMetadata(ch.Metadata["order_id"])
		out.Amount = amountOrZero(ch.AmountRefunded, string(ch.Currency))
		// newest first
		if ch.Refunds != nil && len(ch.Refunds.Data) > 0 {
			out.RefundID = ch.Refunds.Data[0].ID
		}
	}
	return out, nil
}
