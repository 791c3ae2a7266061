package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/config"
	"marketplace-api/middlewares"
	"marketplace-api/models"

	"github.com/shopspring/decimal"
)

const (
	codPrefix    = "cod_"
	manualPrefix = "manual_"
)

// Gateway fronts the configured provider and answers cash-on-delivery
// requests locally.
type Gateway struct {
	provider Provider
	currency string
}

func NewGateway(provider Provider, currency string) *Gateway {
	return &Gateway{provider: provider, currency: strings.ToLower(currency)}
}

// NewProvider builds the provider named by cfg.Gateway. Missing credentials
// do not fail startup; calls then report the gateway as unavailable.
func NewProvider(cfg config.PaymentConfig) Provider {
	switch cfg.Gateway {
	case "stripe":
		if cfg.StripeSecretKey == "" {
			return unavailable(cfg.Gateway, "stripe secret key not configured")
		}
		return NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)
	case "paypal":
		if cfg.PayPalClientID == "" || cfg.PayPalSecret == "" {
			return unavailable(cfg.Gateway, "paypal credentials not configured")
		}
		p, err := NewPayPalProvider(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalMode == "live")
		if err != nil {
			return unavailable(cfg.Gateway, err.Error())
		}
		return p
	case "razorpay":
		if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
			return unavailable(cfg.Gateway, "razorpay credentials not configured")
		}
		return NewRazorpayProvider(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
	}
	return unavailable(cfg.Gateway, fmt.Sprintf("unknown payment gateway %q", cfg.Gateway))
}

func (g *Gateway) ProviderName() string { return g.provider.Name() }

func (g *Gateway) SignatureHeader() string { return g.provider.SignatureHeader() }

func (g *Gateway) Currency() string { return g.currency }

func IsCashOnDelivery(intentID string) bool {
	return strings.HasPrefix(intentID, codPrefix)
}

func (g *Gateway) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntentResult, error) {
	if req.Currency == "" {
		req.Currency = g.currency
	}
	if req.Method == models.PaymentCashOnDelivery {
		return &PaymentIntentResult{
			IntentID: codPrefix + strconv.FormatInt(req.OrderID, 10),
			Status:   StatusSucceeded,
			Amount:   req.Amount,
			Currency: req.Currency,
		}, nil
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation("payment amount must be positive")
	}

	start := time.Now()
	res, err := g.provider.CreatePaymentIntent(ctx, req)
	g.observe("create_intent", start, err)
	return res, err
}

func (g *Gateway) ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*PaymentResult, error) {
	if IsCashOnDelivery(intentID) {
		return &PaymentResult{Success: true, IntentID: intentID, Status: StatusSucceeded}, nil
	}
	start := time.Now()
	res, err := g.provider.ConfirmPaymentIntent(ctx, intentID, methodID)
	g.observe("confirm_intent", start, err)
	return res, err
}

func (g *Gateway) GetPaymentIntentStatus(ctx context.Context, intentID string) (*PaymentResult, error) {
	if IsCashOnDelivery(intentID) {
		return &PaymentResult{Success: true, IntentID: intentID, Status: StatusSucceeded}, nil
	}
	start := time.Now()
	res, err := g.provider.GetPaymentIntentStatus(ctx, intentID)
	g.observe("intent_status", start, err)
	return res, err
}

// ProcessRefund refunds through the provider. Cash-on-delivery orders get a
// synthetic result and have to be settled by hand.
func (g *Gateway) ProcessRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if req.Currency == "" {
		req.Currency = g.currency
	}
	if IsCashOnDelivery(req.PaymentID) {
		return &RefundResult{
			Success:  true,
			RefundID: manualPrefix + strconv.FormatInt(req.OrderID, 10),
			Status:   StatusSucceeded,
			Amount:   req.Amount,
			Message:  "manual processing required",
		}, nil
	}
	if req.PaymentID == "" {
		return nil, apperrors.Validation("order has no payment to refund")
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation("refund amount must be positive")
	}

	start := time.Now()
	res, err := g.provider.Refund(ctx, req)
	g.observe("refund", start, err)
	return res, err
}

// VerifyWebhook checks a notification received on the route for provider.
func (g *Gateway) VerifyWebhook(provider string, payload []byte, signature string) (*WebhookEvent, error) {
	if provider != g.provider.Name() {
		return nil, apperrors.GatewayUnavailable("%s webhooks are not enabled", provider)
	}
	if signature == "" {
		return nil, apperrors.InvalidSignature(errors.New("missing signature header"))
	}
	return g.provider.VerifyWebhookSignature(payload, signature)
}

func (g *Gateway) observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	middlewares.RecordGatewayCall(g.provider.Name(), operation, outcome, time.Since(start))
}

// gatewayError marks a processor failure as the gateway being unavailable.
func gatewayError(provider, operation string, err error) error {
	return &apperrors.Error{
		Kind:    apperrors.KindGatewayUnavailable,
		Message: fmt.Sprintf("%s %s failed", provider, operation),
		Err:     err,
	}
}

type unavailableProvider struct {
	name   string
	reason string
}

func unavailable(name, reason string) Provider {
	return &unavailableProvider{name: name, reason: reason}
}

func (p *unavailableProvider) err() error {
	return apperrors.GatewayUnavailable("payment gateway unavailable: %s", p.reason)
}

func (p *unavailableProvider) Name() string            { return p.name }
func (p *unavailableProvider) SignatureHeader() string { return "" }

func (p *unavailableProvider) CreatePaymentIntent(context.Context, IntentRequest) (*PaymentIntentResult, error) {
	return nil, p.err()
}

func (p *unavailableProvider) ConfirmPaymentIntent(context.Context, string, string) (*PaymentResult, error) {
	return nil, p.err()
}

func (p *unavailableProvider) GetPaymentIntentStatus(context.Context, string) (*PaymentResult, error) {
	return nil, p.err()
}

func (p *unavailableProvider) Refund(context.Context, RefundRequest) (*RefundResult, error) {
	return nil, p.err()
}

func (p *unavailableProvider) VerifyWebhookSignature([]byte, string) (*WebhookEvent, error) {
	return nil, p.err()
}

func orderIDFromMetadata(v string) int64 {
	id, _ := strconv.ParseInt(v, 10, 64)
	return id
}

func amountOrZero(minor int64, currency string) decimal.Decimal {
	if minor <= 0 {
		return decimal.Zero
	}
	return FromMinorUnits(minor, currency)
}
