package payments

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"marketplace-api/apperrors"

	"github.com/plutov/paypal/v4"
)

// PayPalProvider maps intents onto PayPal checkout orders. The intent id is
// the PayPal order id; refunds go against the order's capture.
type PayPalProvider struct {
	client *paypal.Client

	mu       sync.Mutex
	hasToken bool
}

func NewPayPalProvider(clientID, secret string, live bool) (*PayPalProvider, error) {
	base := paypal.APIBaseSandBox
	if live {
		base = paypal.APIBaseLive
	}
	c, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		return nil, err
	}
	return &PayPalProvider{client: c}, nil
}

func (p *PayPalProvider) Name() string { return "paypal" }

func (p *PayPalProvider) SignatureHeader() string { return "Paypal-Transmission-Sig" }

func (p *PayPalProvider) authenticate(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hasToken {
		return nil
	}
	if _, err := p.client.GetAccessToken(ctx); err != nil {
		return gatewayError(p.Name(), "authenticate", err)
	}
	p.hasToken = true
	return nil
}

func (p *PayPalProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntentResult, error) {
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}
	currency := strings.ToUpper(req.Currency)
	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: req.OrderNumber,
		CustomID:    strconv.FormatInt(req.OrderID, 10),
		Description: "Order " + req.OrderNumber,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    formatAmount(req.Amount, req.Currency),
		},
	}}

	order, err := p.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "create order", err)
	}

	res := &PaymentIntentResult{
		IntentID: order.ID,
		Status:   paypalStatus(order.Status),
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			res.ClientSecret = link.Href
		}
	}
	return res, nil
}

func (p *PayPalProvider) ConfirmPaymentIntent(ctx context.Context, intentID, _ string) (*PaymentResult, error) {
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}
	captured, err := p.client.CaptureOrder(ctx, intentID, paypal.CaptureOrderRequest{})
	if err != nil {
		var respErr *paypal.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusUnprocessableEntity {
			return &PaymentResult{Success: false, IntentID: intentID, Status: StatusFailed, Message: respErr.Message}, nil
		}
		return nil, gatewayError(p.Name(), "capture order", err)
	}
	status := paypalStatus(captured.Status)
	return &PaymentResult{Success: status == StatusSucceeded, IntentID: intentID, Status: status}, nil
}

func (p *PayPalProvider) GetPaymentIntentStatus(ctx context.Context, intentID string) (*PaymentResult, error) {
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}
	order, err := p.client.GetOrder(ctx, intentID)
	if err != nil {
		return nil, gatewayError(p.Name(), "get order", err)
	}
	status := paypalStatus(order.Status)
	return &PaymentResult{Success: status == StatusSucceeded, IntentID: intentID, Status: status}, nil
}

func (p *PayPalProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := p.authenticate(ctx); err != nil {
		return nil, err
	}
	order, err := p.client.GetOrder(ctx, req.PaymentID)
	if err != nil {
		return nil, gatewayError(p.Name(), "get order", err)
	}
	captureID := ""
	for _, unit := range order.PurchaseUnits {
		if unit.Payments == nil {
			continue
		}
		for _, c := range unit.Payments.Captures {
			if c.ID != "" {
				captureID = c.ID
			}
		}
	}
	if captureID == "" {
		return &RefundResult{Success: false, Status: StatusFailed, Message: "order has no captured payment"}, nil
	}

	refund, err := p.client.RefundCapture(ctx, captureID, paypal.RefundCaptureRequest{
		Amount: &paypal.Money{
			Currency: strings.ToUpper(req.Currency),
			Value:    formatAmount(req.Amount, req.Currency),
		},
		NoteToPayer: req.Reason,
	})
	if err != nil {
		return nil, gatewayError(p.Name(), "refund capture", err)
	}
	ok := refund.Status == "COMPLETED" || refund.Status == "PENDING"
	return &RefundResult{
		Success:  ok,
		RefundID: refund.ID,
		Status:   strings.ToLower(refund.Status),
		Amount:   req.Amount,
	}, nil
}

// VerifyWebhookSignature is not offered for PayPal: its verification is a
// remote call needing transmission headers this interface does not carry.
func (p *PayPalProvider) VerifyWebhookSignature([]byte, string) (*WebhookEvent, error) {
	return nil, apperrors.InvalidSignature(errors.New("paypal webhook verification is not supported"))
}

func paypalStatus(s string) string {
	switch s {
	case "COMPLETED":
		return StatusSucceeded
	case "APPROVED":
		return StatusRequiresConfirmation
	case "VOIDED":
		return StatusCanceled
	case "CREATED", "SAVED", "PAYER_ACTION_REQUIRED":
		return StatusRequiresAction
	}
	return strings.ToLower(s)
}
