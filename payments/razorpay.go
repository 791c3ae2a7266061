package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"marketplace-api/apperrors"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// RazorpayProvider maps intents onto Razorpay orders. The intent id is the
// Razorpay order id; the payment id is supplied at confirmation.
type RazorpayProvider struct {
	client        *razorpay.Client
	webhookSecret string
}

func NewRazorpayProvider(keyID, keySecret, webhookSecret string) *RazorpayProvider {
	return &RazorpayProvider{
		client:        razorpay.NewClient(keyID, keySecret),
		webhookSecret: webhookSecret,
	}
}

func (p *RazorpayProvider) Name() string { return "razorpay" }

func (p *RazorpayProvider) SignatureHeader() string { return "X-Razorpay-Signature" }

// The razorpay SDK has no context support; ctx is only checked up front.
func (p *RazorpayProvider) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*PaymentIntentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := p.client.Order.Create(map[string]interface{}{
		"amount":   ToMinorUnits(req.Amount, req.Currency),
		"currency": strings.ToUpper(req.Currency),
		"receipt":  req.OrderNumber,
		"notes": map[string]interface{}{
			"order_id": strconv.FormatInt(req.OrderID, 10),
		},
	}, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "create order", err)
	}
	return &PaymentIntentResult{
		IntentID: stringField(body, "id"),
		Status:   razorpayOrderStatus(stringField(body, "status")),
		Amount:   req.Amount,
		Currency: req.Currency,
	}, nil
}

// ConfirmPaymentIntent captures an authorized payment made against the order.
func (p *RazorpayProvider) ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if methodID == "" {
		return nil, apperrors.Validation("razorpay payment id is required to confirm")
	}
	payment, err := p.client.Payment.Fetch(methodID, nil, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "fetch payment", err)
	}
	if stringField(payment, "order_id") != intentID {
		return nil, apperrors.Validation("payment does not belong to this order")
	}

	switch stringField(payment, "status") {
	case "captured":
		return &PaymentResult{Success: true, IntentID: intentID, Status: StatusSucceeded}, nil
	case "authorized":
		amount := int(intField(payment, "amount"))
		captured, err := p.client.Payment.Capture(methodID, amount, map[string]interface{}{
			"currency": stringField(payment, "currency"),
		}, nil)
		if err != nil {
			return nil, gatewayError(p.Name(), "capture payment", err)
		}
		ok := stringField(captured, "status") == "captured"
		status := StatusProcessing
		if ok {
			status = StatusSucceeded
		}
		return &PaymentResult{Success: ok, IntentID: intentID, Status: status}, nil
	case "failed":
		return &PaymentResult{
			Success:  false,
			IntentID: intentID,
			Status:   StatusFailed,
			Message:  stringField(payment, "error_description"),
		}, nil
	}
	return &PaymentResult{Success: false, IntentID: intentID, Status: StatusProcessing}, nil
}

func (p *RazorpayProvider) GetPaymentIntentStatus(ctx context.Context, intentID string) (*PaymentResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	order, err := p.client.Order.Fetch(intentID, nil, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "fetch order", err)
	}
	status := razorpayOrderStatus(stringField(order, "status"))
	return &PaymentResult{Success: status == StatusSucceeded, IntentID: intentID, Status: status}, nil
}

func (p *RazorpayProvider) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payments, err := p.client.Order.Payments(req.PaymentID, nil, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "list order payments", err)
	}
	paymentID := capturedPaymentID(payments)
	if paymentID == "" {
		return &RefundResult{Success: false, Status: StatusFailed, Message: "order has no captured payment"}, nil
	}

	refund, err := p.client.Payment.Refund(paymentID, int(ToMinorUnits(req.Amount, req.Currency)), map[string]interface{}{
		"notes": map[string]interface{}{
			"order_id": strconv.FormatInt(req.OrderID, 10),
			"reason":   req.Reason,
		},
	}, nil)
	if err != nil {
		return nil, gatewayError(p.Name(), "refund", err)
	}
	status := stringField(refund, "status")
	return &RefundResult{
		Success:  status == "processed" || status == "pending",
		RefundID: stringField(refund, "id"),
		Status:   status,
		Amount:   req.Amount,
	}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity razorpayEntity `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type razorpayEntity struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	ErrorDescription string          `json:"error_description"`
	Notes            json.RawMessage `json:"notes"`
}

// note reads a key from notes, which Razorpay sends as [] when empty.
func (e razorpayEntity) note(key string) string {
	var notes map[string]string
	if err := json.Unmarshal(e.Notes, &notes); err != nil {
		return ""
	}
	return notes[key]
}

var razorpayEvents = map[string]string{
	"payment.captured": EventPaymentSucceeded,
	"order.paid":       EventPaymentSucceeded,
	"payment.failed":   EventPaymentFailed,
	"refund.processed": EventChargeRefunded,
}

func (p *RazorpayProvider) VerifyWebhookSignature(payload []byte, signature string) (*WebhookEvent, error) {
	if p.webhookSecret == "" {
		return nil, apperrors.GatewayUnavailable("razorpay webhook secret not configured")
	}
	if !utils.VerifyWebhookSignature(string(payload), signature, p.webhookSecret) {
		return nil, apperrors.InvalidSignature(errors.New("razorpay signature mismatch"))
	}

	var hook razorpayWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, apperrors.Validation("malformed razorpay payload: %v", err)
	}
	payment := hook.Payload.Payment.Entity
	out := &WebhookEvent{
		Type:      hook.Event,
		PaymentID: payment.OrderID,
		OrderID:   orderIDFromMetadata(payment.note("order_id")),
	}
	if t, ok := razorpayEvents[hook.Event]; ok {
		out.Type = t
	}

	// Razorpay retries carry the same entity, which makes it a stable event id.
	entityID := payment.ID
	amount := payment.Amount
	currency := payment.Currency
	if refund := hook.Payload.Refund.Entity; refund.ID != "" {
		entityID = refund.ID
		out.RefundID = refund.ID
		amount = refund.Amount
		currency = refund.Currency
	}
	out.ID = hook.Event + ":" + entityID
	out.Amount = amountOrZero(amount, currency)
	out.FailureReason = payment.ErrorDescription
	return out, nil
}

func razorpayOrderStatus(s string) string {
	switch s {
	case "paid":
		return StatusSucceeded
	case "attempted":
		return StatusProcessing
	case "created":
		return StatusRequiresPaymentMethod
	}
	return s
}

func capturedPaymentID(list map[string]interface{}) string {
	items, _ := list["items"].([]interface{})
	for _, raw := range items {
		item, ok := raw.(map[string]interface{})
		if ok && stringField(item, "status") == "captured" {
			return stringField(item, "id")
		}
	}
	return ""
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

// intField reads a JSON number, which the SDK decodes as float64.
func intField(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}
