package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/config"
	"marketplace-api/logger"
	"marketplace-api/models"
	"marketplace-api/payments"
	"marketplace-api/tracing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	unpaidCancellationReason = "payment not completed"
	customerCancelReason     = "cancelled by customer"
)

// transitions lists the status updates shops and admins may apply.
// REFUNDED is reachable only through Refund.
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:               {models.StatusAccepted, models.StatusCancelled},
	models.StatusAccepted:              {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing:             {models.StatusReadyForPickup, models.StatusCancelled},
	models.StatusReadyForPickup:        {models.StatusInDelivery, models.StatusCancelled},
	models.StatusInDelivery:            {models.StatusDelivered},
	models.StatusCancellationRequested: {models.StatusCancelled, models.StatusAccepted},
}

// courierTransitions are the moves open to the assigned delivery agent.
var courierTransitions = map[models.OrderStatus]models.OrderStatus{
	models.StatusReadyForPickup: models.StatusInDelivery,
	models.StatusInDelivery:     models.StatusDelivered,
}

func CanTransition(from, to models.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderItemInput struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// FeeOverride replaces the computed fees. Only internal callers set it.
type FeeOverride struct {
	DeliveryFee *decimal.Decimal
	ServiceFee  *decimal.Decimal
	Tax         *decimal.Decimal
	Discount    *decimal.Decimal
}

type CreateOrderInput struct {
	ShopID          int64                `json:"shop_id" binding:"required"`
	Items           []OrderItemInput     `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress models.Address       `json:"delivery_address" binding:"required"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required"`
	Fees            *FeeOverride         `json:"-"`
}

type CreateOrderResult struct {
	Order   *models.Order                 `json:"order"`
	Payment *payments.PaymentIntentResult `json:"payment,omitempty"`
}

type FeeUpdate struct {
	DeliveryFee *decimal.Decimal `json:"delivery_fee"`
	Discount    *decimal.Decimal `json:"discount"`
}

type RefundOutcome struct {
	Order  *models.Order          `json:"order"`
	Refund *models.Refund         `json:"refund"`
	Result *payments.RefundResult `json:"result"`
}

type OrderService struct {
	orders  OrderRepository
	catalog CatalogRepository
	users   UserRepository
	cache   OrderCache
	gateway PaymentGateway
	events  EventPublisher
	fees    config.FeeConfig
	now     func() time.Time
}

// NewOrderService wires the lifecycle rules. cache may be nil.
func NewOrderService(
	orders OrderRepository,
	catalog CatalogRepository,
	users UserRepository,
	cache OrderCache,
	gateway PaymentGateway,
	events EventPublisher,
	fees config.FeeConfig,
) *OrderService {
	return &OrderService{
		orders:  orders,
		catalog: catalog,
		users:   users,
		cache:   cache,
		gateway: gateway,
		events:  events,
		fees:    fees,
		now:     time.Now,
	}
}

// Create prices the basket server-side, stores the order with its items and
// reserved stock, then opens a payment intent. A failed intent leaves the
// order PENDING; the customer can retry it through the payment endpoints.
func (s *OrderService) Create(ctx context.Context, actor Actor, in CreateOrderInput) (res *CreateOrderResult, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.Create")
	defer func() { tracing.End(span, err) }()

	if !in.PaymentMethod.Valid() {
		return nil, apperrors.Validation("unsupported payment method %q", in.PaymentMethod)
	}
	ids, quantities, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}

	shop, err := s.catalog.GetShop(ctx, in.ShopID)
	if err != nil {
		return nil, err
	}
	if !shop.IsActive {
		return nil, apperrors.ErrShopNotFound
	}

	products, err := s.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	items := make([]models.OrderItem, 0, len(ids))
	subtotal := decimal.Zero
	for _, id := range ids {
		p, ok := products[id]
		if !ok || p.ShopID != shop.ID {
			return nil, apperrors.ErrProductNotFound
		}
		qty := quantities[id]
		if !p.InStock || p.StockQuantity < qty {
			return nil, apperrors.OutOfStock(id)
		}
		line := p.Price.Mul(decimal.NewFromInt(int64(qty)))
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    qty,
			LineTotal:   line,
		})
		subtotal = subtotal.Add(line)
	}

	now := s.now().UTC()
	eta := now.Add(s.fees.DeliveryETA)
	o := &models.Order{
		OrderNumber:         newOrderNumber(now),
		UserID:              actor.UserID,
		ShopID:              shop.ID,
		ShopName:            shop.Name,
		DeliveryAddress:     in.DeliveryAddress,
		Subtotal:            subtotal,
		DeliveryFee:         shop.DeliveryFee,
		ServiceFee:          subtotal.Mul(s.fees.ServiceFeeRate).Round(2),
		Tax:                 subtotal.Mul(s.fees.TaxRate).Round(2),
		Discount:            decimal.Zero,
		Tip:                 decimal.Zero,
		PaymentMethod:       in.PaymentMethod,
		PaymentStatus:       models.PaymentStatusPending,
		Status:              models.StatusPending,
		Items:               items,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedDeliveryAt: &eta,
	}
	applyFeeOverride(o, in.Fees)
	o.RecomputeTotal()
	if o.Total.IsNegative() {
		return nil, apperrors.Validation("order total cannot be negative")
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "order created",
		slog.Int64("order_id", o.ID), slog.String("order_number", o.OrderNumber), logger.Traced(ctx))
	s.events.OrderChanged(models.NewOrderEvent(models.EventOrderCreated, o))

	intent := attachIntent(ctx, s.orders, s.gateway, o, s.customerEmail(ctx, actor.UserID))
	s.events.SchedulePaymentCheck(o)
	return &CreateOrderResult{Order: o, Payment: intent}, nil
}

// mergeItems folds duplicate product lines and returns ids in a stable order.
func mergeItems(in []OrderItemInput) ([]int64, map[int64]int, error) {
	if len(in) == 0 {
		return nil, nil, apperrors.Validation("order must contain at least one item")
	}
	quantities := make(map[int64]int, len(in))
	for _, item := range in {
		if item.Quantity < 1 {
			return nil, nil, apperrors.Validation("quantity for product %d must be at least 1", item.ProductID)
		}
		quantities[item.ProductID] += item.Quantity
	}
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, quantities, nil
}

func applyFeeOverride(o *models.Order, f *FeeOverride) {
	if f == nil {
		return
	}
	if f.DeliveryFee != nil {
		o.DeliveryFee = *f.DeliveryFee
	}
	if f.ServiceFee != nil {
		o.ServiceFee = *f.ServiceFee
	}
	if f.Tax != nil {
		o.Tax = *f.Tax
	}
	if f.Discount != nil {
		o.Discount = *f.Discount
	}
}

func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ORD-" + now.Format("20060102") + "-" + suffix
}

func (s *OrderService) customerEmail(ctx context.Context, userID int64) string {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return u.Email
}

// attachIntent opens an intent for o and stores its id. Failures are logged;
// the order stays payable through a later retry.
func attachIntent(ctx context.Context, orders OrderRepository, gateway PaymentGateway, o *models.Order, email string) *payments.PaymentIntentResult {
	intent, err := gateway.CreatePaymentIntent(ctx, payments.IntentRequest{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Amount:        o.Total,
		Method:        o.PaymentMethod,
		CustomerEmail: email,
	})
	if err != nil {
		slog.WarnContext(ctx, "payment intent not created",
			slog.Int64("order_id", o.ID), logger.Err(err), logger.Traced(ctx))
		return nil
	}

	prevID, prevStatus := o.PaymentID, o.PaymentStatus
	o.PaymentID = intent.IntentID
	if intent.Status == payments.StatusSucceeded {
		o.PaymentStatus = models.PaymentStatusSucceeded
	}
	if err := orders.Update(ctx, o); err != nil {
		o.PaymentID, o.PaymentStatus = prevID, prevStatus
		slog.WarnContext(ctx, "payment intent not stored on order",
			slog.Int64("order_id", o.ID), slog.String("intent_id", intent.IntentID), logger.Err(err))
	}
	return intent
}

func (s *OrderService) Get(ctx context.Context, actor Actor, id int64) (*models.Order, error) {
	o, err := s.cachedOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *OrderService) cachedOrder(ctx context.Context, id int64) (*models.Order, error) {
	if s.cache != nil {
		o, err := s.cache.Get(ctx, id)
		if err != nil {
			slog.WarnContext(ctx, "order cache read failed", slog.Int64("order_id", id), logger.Err(err))
		} else if o != nil {
			return o, nil
		}
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, o); err != nil {
			slog.WarnContext(ctx, "order cache write failed", slog.Int64("order_id", id), logger.Err(err))
		}
	}
	return o, nil
}

// List scopes the filter to what the caller may see.
func (s *OrderService) List(ctx context.Context, actor Actor, f models.OrderFilter) ([]models.Order, error) {
	switch actor.Role {
	case models.RoleAdmin:
	case models.RoleCustomer:
		f.UserID = &actor.UserID
	case models.RoleVendor:
		if f.ShopID == nil {
			return nil, apperrors.Validation("shop_id is required")
		}
		if err := s.ownsShop(ctx, actor, *f.ShopID); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.Forbidden("role %s cannot list orders", actor.Role)
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, apperrors.Validation("unknown status %q", *f.Status)
	}
	f.Normalize()
	return s.orders.List(ctx, f)
}

func (s *OrderService) Stats(ctx context.Context, actor Actor) ([]models.StatusStats, error) {
	if !actor.Is(models.RoleAdmin) {
		return nil, apperrors.Forbidden("admin only")
	}
	return s.orders.Stats(ctx)
}

// authorize hides orders the caller has no relation to behind NotFound.
func (s *OrderService) authorize(ctx context.Context, actor Actor, o *models.Order) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleCustomer:
		if o.UserID == actor.UserID {
			return nil
		}
	case models.RoleDelivery:
		if o.DeliveryPersonID != nil && *o.DeliveryPersonID == actor.UserID {
			return nil
		}
	case models.RoleVendor:
		err := s.ownsShop(ctx, actor, o.ShopID)
		if err == nil || !errors.Is(err, apperrors.ErrShopNotFound) {
			return err
		}
	}
	return apperrors.ErrOrderNotFound
}

func (s *OrderService) ownsShop(ctx context.Context, actor Actor, shopID int64) error {
	shop, err := s.catalog.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	if shop.OwnerID != actor.UserID {
		return apperrors.ErrShopNotFound
	}
	return nil
}

// CanWatchShop reports whether actor may follow a shop's order feed.
func (s *OrderService) CanWatchShop(ctx context.Context, actor Actor, shopID int64) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleVendor:
		return s.ownsShop(ctx, actor, shopID)
	}
	return apperrors.Forbidden("role %s cannot follow shop orders", actor.Role)
}

func requireRole(actor Actor, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return apperrors.Forbidden("role %s may not perform this operation", actor.Role)
}

// mutation changes o in memory and names the event to emit on commit.
type mutation func(o *models.Order) (models.OrderEventType, error)

// mutate loads the order fresh from storage, applies fn and writes it back
// with a version check. The cache is never the source for a write.
func (s *OrderService) mutate(ctx context.Context, actor Actor, id int64, fn mutation) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, o); err != nil {
		return nil, err
	}
	ev, err := fn(o)
	if err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.committed(ctx, o, ev)
	return o, nil
}

func (s *OrderService) committed(ctx context.Context, o *models.Order, ev models.OrderEventType) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, o.ID); err != nil {
			slog.WarnContext(ctx, "order cache invalidation failed", slog.Int64("order_id", o.ID), logger.Err(err))
		}
	}
	s.events.OrderChanged(models.NewOrderEvent(ev, o))
}

// CustomerCancel asks for cancellation. A PENDING order goes through
// CANCELLATION_REQUESTED straight to CANCELLED; an ACCEPTED one waits at
// CANCELLATION_REQUESTED for the shop.
func (s *OrderService) CustomerCancel(ctx context.Context, actor Actor, id int64, reason string) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.CustomerCancel")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleCustomer); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = customerCancelReason
	}

	var wasPending bool
	o, err = s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		if o.Status != models.StatusPending && o.Status != models.StatusAccepted {
			return "", apperrors.InvalidStateTransition(string(o.Status), string(models.StatusCancellationRequested))
		}
		wasPending = o.Status == models.StatusPending
		o.Status = models.StatusCancellationRequested
		o.CancellationReason = &reason
		return models.EventCancellationRequested, nil
	})
	if err != nil || !wasPending {
		return o, err
	}

	o.Status = models.StatusCancelled
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, err
	}
	s.committed(ctx, o, models.EventOrderCancelled)
	return o, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, actor Actor, id int64, to models.OrderStatus, reason string) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.UpdateStatus")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleAdmin, models.RoleVendor, models.RoleDelivery); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, apperrors.Validation("unknown status %q", to)
	}

	return s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		allowed := CanTransition(o.Status, to)
		if actor.Is(models.RoleDelivery) {
			allowed = courierTransitions[o.Status] == to
		}
		if !allowed {
			return "", apperrors.InvalidStateTransition(string(o.Status), string(to))
		}

		o.Status = to
		switch to {
		case models.StatusDelivered:
			now := s.now().UTC()
			o.DeliveredAt = &now
			return models.EventOrderStatusChanged, nil
		case models.StatusCancelled:
			if reason != "" {
				o.CancellationReason = &reason
			}
			return models.EventOrderCancelled, nil
		case models.StatusAccepted:
			// a declined cancellation request clears the customer's reason
			o.CancellationReason = nil
		}
		return models.EventOrderStatusChanged, nil
	})
}

// AdminCancel cancels any order that has not reached a terminal status.
func (s *OrderService) AdminCancel(ctx context.Context, actor Actor, id int64, reason string) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.AdminCancel")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleAdmin, models.RoleVendor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperrors.Validation("cancellation reason is required")
	}
	return s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		if o.Status.Terminal() {
			return "", apperrors.InvalidStateTransition(string(o.Status), string(models.StatusCancelled))
		}
		o.Status = models.StatusCancelled
		o.CancellationReason = &reason
		return models.EventOrderCancelled, nil
	})
}

// UpdateTip sets the tip on a delivered order. The total is unaffected.
func (s *OrderService) UpdateTip(ctx context.Context, actor Actor, id int64, tip decimal.Decimal) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.UpdateTip")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleCustomer); err != nil {
		return nil, err
	}
	if tip.IsNegative() {
		return nil, apperrors.Validation("tip cannot be negative")
	}
	return s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		if o.Status != models.StatusDelivered {
			return "", apperrors.InvalidState("tip can only be added to a delivered order (status %s)", o.Status)
		}
		o.Tip = tip.Round(2)
		return models.EventTipUpdated, nil
	})
}

// UpdateFees adjusts delivery fee and discount and recomputes the total in
// the same versioned write, so a concurrent edit yields a conflict.
func (s *OrderService) UpdateFees(ctx context.Context, actor Actor, id int64, in FeeUpdate) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.UpdateFees")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	if in.DeliveryFee == nil && in.Discount == nil {
		return nil, apperrors.Validation("delivery_fee or discount is required")
	}
	if (in.DeliveryFee != nil && in.DeliveryFee.IsNegative()) || (in.Discount != nil && in.Discount.IsNegative()) {
		return nil, apperrors.Validation("fees cannot be negative")
	}

	return s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		switch o.Status {
		case models.StatusDelivered, models.StatusCancelled, models.StatusRefunded:
			return "", apperrors.InvalidState("fees cannot change once an order is %s", o.Status)
		}
		next := *o
		if in.DeliveryFee != nil {
			next.DeliveryFee = in.DeliveryFee.Round(2)
		}
		if in.Discount != nil {
			next.Discount = in.Discount.Round(2)
		}
		next.RecomputeTotal()
		if next.Total.IsNegative() {
			return "", apperrors.Validation("discount exceeds the order value")
		}
		if repriceDropsIntent(o, &next) {
			next.PaymentID = ""
		}
		*o = next
		return models.EventFeesUpdated, nil
	})
}

// repriceDropsIntent reports whether an unpaid intent was opened for a total
// the order no longer has. The customer then requests a new one.
func repriceDropsIntent(before, after *models.Order) bool {
	return after.Status == models.StatusPending &&
		after.PaymentStatus != models.PaymentStatusSucceeded &&
		after.PaymentID != "" &&
		!payments.IsCashOnDelivery(after.PaymentID) &&
		!after.Total.Equal(before.Total)
}

// Refund returns the order total through the gateway. The order only
// becomes REFUNDED after the gateway reports success.
func (s *OrderService) Refund(ctx context.Context, actor Actor, id int64, reason string) (out *RefundOutcome, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.Refund")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != models.StatusDelivered && o.Status != models.StatusCancelled {
		return nil, apperrors.InvalidStateTransition(string(o.Status), string(models.StatusRefunded))
	}
	if o.PaymentStatus != models.PaymentStatusSucceeded {
		return nil, apperrors.InvalidState("order has no captured payment (payment status %s)", o.PaymentStatus)
	}

	result, err := s.gateway.ProcessRefund(ctx, payments.RefundRequest{
		OrderID:   o.ID,
		PaymentID: o.PaymentID,
		Amount:    o.Total,
		Reason:    reason,
	})
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, apperrors.PaymentFailed("refund declined: %s", result.Message)
	}

	amount := result.Amount
	if amount.IsZero() {
		amount = o.Total
	}
	refund := &models.Refund{
		OrderID:   o.ID,
		RefundID:  result.RefundID,
		Amount:    amount,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	o.Status = models.StatusRefunded
	o.PaymentStatus = models.PaymentStatusRefunded
	err = s.orders.UpdateWithRefund(ctx, o, refund)
	if errors.Is(err, apperrors.ErrStaleOrder) {
		// the provider's refund webhook may have recorded it first
		current, rerr := s.orders.GetByID(ctx, id)
		if rerr == nil && current.Status == models.StatusRefunded {
			slog.InfoContext(ctx, "refund already recorded by webhook",
				slog.Int64("order_id", id), slog.String("refund_id", result.RefundID))
			return &RefundOutcome{Order: current, Refund: refund, Result: result}, nil
		}
	}
	if err != nil {
		// money has moved; this needs an operator
		slog.ErrorContext(ctx, "refund issued but order not updated",
			slog.Int64("order_id", o.ID), slog.String("refund_id", result.RefundID), logger.Err(err))
		return nil, err
	}
	s.committed(ctx, o, models.EventOrderRefunded)
	return &RefundOutcome{Order: o, Refund: refund, Result: result}, nil
}

// AssignDelivery hands the order to an active delivery agent.
func (s *OrderService) AssignDelivery(ctx context.Context, actor Actor, id, agentID int64) (o *models.Order, err error) {
	ctx, span := tracing.Start(ctx, "OrderService.AssignDelivery")
	defer func() { tracing.End(span, err) }()

	if err := requireRole(actor, models.RoleAdmin, models.RoleVendor); err != nil {
		return nil, err
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, apperrors.InvalidAssignment("user %d does not exist", agentID)
	}
	if err != nil {
		return nil, err
	}
	if agent.Role != models.RoleDelivery {
		return nil, apperrors.InvalidAssignment("user %d is not a delivery agent", agentID)
	}
	if !agent.IsActive {
		return nil, apperrors.InvalidAssignment("delivery agent %d is not active", agentID)
	}

	return s.mutate(ctx, actor, id, func(o *models.Order) (models.OrderEventType, error) {
		switch o.Status {
		case models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup:
		default:
			return "", apperrors.InvalidState("cannot assign a courier to a %s order", o.Status)
		}
		o.DeliveryPersonID = &agentID
		return models.EventDeliveryAssigned, nil
	})
}

// ExpireUnpaid cancels an online-paid order still waiting for its payment.
// It reports whether the order was cancelled.
func (s *OrderService) ExpireUnpaid(ctx context.Context, id int64) (bool, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if o.Status != models.StatusPending ||
		o.PaymentMethod == models.PaymentCashOnDelivery ||
		o.PaymentStatus == models.PaymentStatusSucceeded {
		return false, nil
	}

	reason := unpaidCancellationReason
	o.Status = models.StatusCancelled
	o.CancellationReason = &reason
	if err := s.orders.Update(ctx, o); err != nil {
		return false, err
	}
	s.committed(ctx, o, models.EventOrderCancelled)
	return true, nil
}
