package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/logger"
	"marketplace-api/models"
	"marketplace-api/payments"
	"marketplace-api/tracing"
)

// reconcileAttempts bounds the re-read loop when a webhook races another write.
const reconcileAttempts = 3

type PaymentService struct {
	orders  OrderRepository
	users   UserRepository
	cache   OrderCache
	gateway PaymentGateway
	events  EventPublisher
	dedupe  WebhookDeduper
	now     func() time.Time
}

// NewPaymentService wires intent handling and webhook reconciliation. cache
// and dedupe may be nil.
func NewPaymentService(
	orders OrderRepository,
	users UserRepository,
	cache OrderCache,
	gateway PaymentGateway,
	events EventPublisher,
	dedupe WebhookDeduper,
) *PaymentService {
	return &PaymentService{
		orders:  orders,
		users:   users,
		cache:   cache,
		gateway: gateway,
		events:  events,
		dedupe:  dedupe,
		now:     time.Now,
	}
}

func (s *PaymentService) ownOrder(ctx context.Context, actor Actor, orderID int64) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Is(models.RoleAdmin) && o.UserID != actor.UserID {
		return nil, apperrors.ErrOrderNotFound
	}
	return o, nil
}

// CreateIntent opens, or re-opens, the payment intent of a pending order.
func (s *PaymentService) CreateIntent(ctx context.Context, actor Actor, orderID int64) (res *payments.PaymentIntentResult, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.CreateIntent")
	defer func() { tracing.End(span, err) }()

	o, err := s.ownOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusPending {
		return nil, apperrors.InvalidState("order is %s, payment is only taken while PENDING", o.Status)
	}
	if o.PaymentStatus == models.PaymentStatusSucceeded {
		return nil, apperrors.Conflict("order is already paid")
	}

	email := ""
	if u, err := s.users.GetByID(ctx, o.UserID); err == nil {
		email = u.Email
	}
	res, err = s.gateway.CreatePaymentIntent(ctx, payments.IntentRequest{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Amount:        o.Total,
		Method:        o.PaymentMethod,
		CustomerEmail: email,
	})
	if err != nil {
		return nil, err
	}

	o.PaymentID = res.IntentID
	o.PaymentStatus = models.PaymentStatusPending
	if res.Status == payments.StatusSucceeded {
		o.PaymentStatus = models.PaymentStatusSucceeded
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.committed(ctx, o, "")
	return res, nil
}

// Confirm completes the order's intent. A decline is returned as an
// unsuccessful result and recorded as a failed payment.
func (s *PaymentService) Confirm(ctx context.Context, actor Actor, orderID int64, methodID string) (res *payments.PaymentResult, err error) {
	ctx, span := tracing.Start(ctx, "PaymentService.Confirm")
	defer func() { tracing.End(span, err) }()

	o, err := s.ownOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentID == "" {
		return nil, apperrors.Validation("order has no payment intent, create one first")
	}
	if o.PaymentStatus == models.PaymentStatusSucceeded {
		return &payments.PaymentResult{Success: true, IntentID: o.PaymentID, Status: payments.StatusSucceeded}, nil
	}
	if o.Status != models.StatusPending {
		return nil, apperrors.InvalidState("order is %s, payment is only taken while PENDING", o.Status)
	}

	res, err = s.gateway.ConfirmPaymentIntent(ctx, o.PaymentID, methodID)
	if err != nil {
		return nil, err
	}

	var ev models.OrderEventType
	switch {
	case res.Success:
		o.PaymentStatus = models.PaymentStatusSucceeded
		ev = models.EventPaymentSucceeded
	case res.Status == payments.StatusFailed:
		o.PaymentStatus = models.PaymentStatusFailed
		ev = models.EventPaymentFailed
	default:
		// still in flight; the webhook settles it
		return res, nil
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.committed(ctx, o, ev)
	return res, nil
}

// Status asks the gateway for the live state of the order's payment.
func (s *PaymentService) Status(ctx context.Context, actor Actor, orderID int64) (*payments.PaymentResult, error) {
	o, err := s.ownOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentID == "" {
		return &payments.PaymentResult{IntentID: "", Status: payments.StatusRequiresPaymentMethod}, nil
	}
	return s.gateway.GetPaymentIntentStatus(ctx, o.PaymentID)
}

// HandleWebhook verifies a provider notification and reconciles the order.
// Only verification errors are returned; once the payload is authentic,
// reconciliation problems are logged so the provider does not retry.
func (s *PaymentService) HandleWebhook(ctx context.Context, provider string, payload []byte, signature string) error {
	ctx, span := tracing.Start(ctx, "PaymentService.HandleWebhook")
	defer span.End()

	event, err := s.gateway.VerifyWebhook(provider, payload, signature)
	if err != nil {
		return err
	}
	log := slog.With(
		slog.String("provider", provider),
		slog.String("event_id", event.ID),
		slog.String("event_type", event.Type),
		logger.Traced(ctx),
	)

	if s.dedupe != nil && event.ID != "" {
		first, err := s.dedupe.FirstDelivery(ctx, provider, event.ID)
		if err != nil {
			log.WarnContext(ctx, "webhook dedupe unavailable, processing anyway", logger.Err(err))
		} else if !first {
			log.InfoContext(ctx, "duplicate webhook ignored")
			return nil
		}
	}

	if err := s.reconcile(ctx, event); err != nil {
		log.ErrorContext(ctx, "webhook reconciliation failed", logger.Err(err))
		return nil
	}
	log.InfoContext(ctx, "webhook processed")
	return nil
}

func (s *PaymentService) reconcile(ctx context.Context, event *payments.WebhookEvent) error {
	switch event.Type {
	case payments.EventPaymentSucceeded, payments.EventPaymentFailed, payments.EventChargeRefunded:
	default:
		return nil
	}

	for attempt := 1; ; attempt++ {
		o, err := s.resolve(ctx, event)
		if err != nil {
			return err
		}
		err = s.apply(ctx, o, event)
		if !errors.Is(err, apperrors.ErrStaleOrder) || attempt == reconcileAttempts {
			return err
		}
	}
}

// resolve finds the order by provider payment id, then by the order id the
// provider echoed back from metadata.
func (s *PaymentService) resolve(ctx context.Context, event *payments.WebhookEvent) (*models.Order, error) {
	if event.PaymentID != "" {
		o, err := s.orders.GetByPaymentID(ctx, event.PaymentID)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, apperrors.ErrOrderNotFound) || event.OrderID == 0 {
			return nil, err
		}
	}
	if event.OrderID == 0 {
		return nil, apperrors.ErrOrderNotFound
	}
	return s.orders.GetByID(ctx, event.OrderID)
}

func (s *PaymentService) apply(ctx context.Context, o *models.Order, event *payments.WebhookEvent) error {
	if o.PaymentID == "" && event.PaymentID != "" {
		o.PaymentID = event.PaymentID
	}

	switch event.Type {
	case payments.EventPaymentSucceeded:
		if o.PaymentStatus == models.PaymentStatusSucceeded || o.PaymentStatus == models.PaymentStatusRefunded {
			return nil
		}
		o.PaymentStatus = models.PaymentStatusSucceeded
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		s.committed(ctx, o, models.EventPaymentSucceeded)

	case payments.EventPaymentFailed:
		if o.PaymentStatus != models.PaymentStatusPending {
			return nil
		}
		o.PaymentStatus = models.PaymentStatusFailed
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		s.committed(ctx, o, models.EventPaymentFailed)

	case payments.EventChargeRefunded:
		if o.PaymentStatus == models.PaymentStatusRefunded {
			return nil
		}
		o.PaymentStatus = models.PaymentStatusRefunded
		if o.Status != models.StatusDelivered && o.Status != models.StatusCancelled {
			// refunded outside the lifecycle; record the money, keep the status
			if err := s.orders.Update(ctx, o); err != nil {
				return err
			}
			s.committed(ctx, o, models.EventOrderRefunded)
			return nil
		}
		amount := event.Amount
		if amount.IsZero() {
			amount = o.Total
		}
		o.Status = models.StatusRefunded
		refundID := event.RefundID
		if refundID == "" {
			refundID = event.ID
		}
		refund := &models.Refund{
			OrderID:   o.ID,
			RefundID:  refundID,
			Amount:    amount,
			Reason:    "refunded at provider",
			CreatedAt: s.now().UTC(),
		}
		if err := s.orders.UpdateWithRefund(ctx, o, refund); err != nil {
			return err
		}
		s.committed(ctx, o, models.EventOrderRefunded)
	}
	return nil
}

// committed invalidates the cached order and, when ev is set, publishes it.
func (s *PaymentService) committed(ctx context.Context, o *models.Order, ev models.OrderEventType) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, o.ID); err != nil {
			slog.WarnContext(ctx, "order cache invalidation failed", slog.Int64("order_id", o.ID), logger.Err(err))
		}
	}
	if ev != "" {
		s.events.OrderChanged(models.NewOrderEvent(ev, o))
	}
}
