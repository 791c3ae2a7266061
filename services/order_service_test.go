package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/config"
	"marketplace-api/models"
	"marketplace-api/payments"
	"marketplace-api/services"
	"marketplace-api/services/mocks"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	customer = services.Actor{UserID: 7, Role: models.RoleCustomer}
	admin    = services.Actor{UserID: 1, Role: models.RoleAdmin}
	vendor   = services.Actor{UserID: 30, Role: models.RoleVendor}
	courier  = services.Actor{UserID: 50, Role: models.RoleDelivery}
)

type orderDeps struct {
	orders  *mocks.OrderRepository
	catalog *mocks.CatalogRepository
	users   *mocks.UserRepository
	cache   *mocks.OrderCache
	gateway *mocks.PaymentGateway
	events  *mocks.EventPublisher
}

func newOrderService(t *testing.T) (*services.OrderService, orderDeps) {
	d := orderDeps{
		orders:  mocks.NewOrderRepository(t),
		catalog: mocks.NewCatalogRepository(t),
		users:   mocks.NewUserRepository(t),
		cache:   mocks.NewOrderCache(t),
		gateway: mocks.NewPaymentGateway(t),
		events:  mocks.NewEventPublisher(t),
	}
	fees := config.FeeConfig{
		ServiceFeeRate: decimal.RequireFromString("0.05"),
		TaxRate:        decimal.RequireFromString("0.08"),
		DeliveryETA:    30 * time.Minute,
	}
	return services.NewOrderService(d.orders, d.catalog, d.users, d.cache, d.gateway, d.events, fees), d
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

// pendingOrder is a card order worth 16.80 placed by customer.
func pendingOrder() *models.Order {
	return &models.Order{
		ID:            100,
		OrderNumber:   "ORD-20260101-ABCDEF12",
		UserID:        customer.UserID,
		ShopID:        3,
		Subtotal:      dec("13.00"),
		DeliveryFee:   dec("2.00"),
		ServiceFee:    dec("1.00"),
		Tax:           dec("0.80"),
		Discount:      decimal.Zero,
		Tip:           decimal.Zero,
		Total:         dec("16.80"),
		PaymentMethod: models.PaymentCard,
		PaymentID:     "pi_100",
		PaymentStatus: models.PaymentStatusPending,
		Status:        models.StatusPending,
		Version:       1,
	}
}

func withStatus(status models.OrderStatus) func(*models.Order) bool {
	return func(o *models.Order) bool { return o.Status == status }
}

func eventOf(t models.OrderEventType) interface{} {
	return mock.MatchedBy(func(ev models.OrderEvent) bool { return ev.Type == t })
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.StatusPending, models.StatusAccepted, true},
		{models.StatusAccepted, models.StatusPreparing, true},
		{models.StatusPreparing, models.StatusReadyForPickup, true},
		{models.StatusReadyForPickup, models.StatusInDelivery, true},
		{models.StatusInDelivery, models.StatusDelivered, true},
		{models.StatusCancellationRequested, models.StatusAccepted, true},
		{models.StatusCancellationRequested, models.StatusCancelled, true},
		{models.StatusPending, models.StatusDelivered, false},
		{models.StatusInDelivery, models.StatusCancelled, false},
		{models.StatusDelivered, models.StatusRefunded, false},
		{models.StatusCancelled, models.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, services.CanTransition(tt.from, tt.to))
		})
	}
}

func TestOrderService_Create(t *testing.T) {
	svc, d := newOrderService(t)
	ctx := context.Background()

	d.catalog.On("GetShop", mock.Anything, int64(3)).
		Return(&models.Shop{ID: 3, OwnerID: 30, Name: "Noodle Bar", DeliveryFee: dec("3.50"), IsActive: true}, nil)
	d.catalog.On("GetProducts", mock.Anything, []int64{11, 12}).Return(map[int64]models.Product{
		11: {ID: 11, ShopID: 3, Name: "Ramen", Price: dec("5.00"), StockQuantity: 10, InStock: true},
		12: {ID: 12, ShopID: 3, Name: "Gyoza", Price: dec("3.00"), StockQuantity: 4, InStock: true},
	}, nil)
	d.orders.On("Create", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Order).ID = 100 }).
		Return(nil)
	d.events.On("OrderChanged", eventOf(models.EventOrderCreated)).Once()
	d.users.On("GetByID", mock.Anything, customer.UserID).Return(&models.User{ID: 7, Email: "ada@example.com"}, nil)
	d.gateway.On("CreatePaymentIntent", mock.Anything, mock.MatchedBy(func(r payments.IntentRequest) bool {
		return r.OrderID == 100 && r.Amount.Equal(dec("16.80")) && r.CustomerEmail == "ada@example.com"
	})).Return(&payments.PaymentIntentResult{IntentID: "pi_100", ClientSecret: "secret", Status: payments.StatusRequiresPaymentMethod}, nil)
	d.orders.On("Update", mock.Anything, mock.MatchedBy(func(o *models.Order) bool { return o.PaymentID == "pi_100" })).Return(nil)
	d.events.On("SchedulePaymentCheck", mock.AnythingOfType("*models.Order")).Once()

	res, err := svc.Create(ctx, customer, services.CreateOrderInput{
		ShopID: 3,
		Items: []services.OrderItemInput{
			{ProductID: 11, Quantity: 1},
			{ProductID: 12, Quantity: 1},
			{ProductID: 11, Quantity: 1},
		},
		DeliveryAddress: models.Address{Line1: "1 Main St", City: "Springfield"},
		PaymentMethod:   models.PaymentCard,
		Fees: &services.FeeOverride{
			DeliveryFee: ptr(dec("2.00")),
			ServiceFee:  ptr(dec("1.00")),
			Tax:         ptr(dec("0.80")),
		},
	})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, models.StatusPending, o.Status)
	assert.Equal(t, models.PaymentStatusPending, o.PaymentStatus)
	assert.True(t, o.Subtotal.Equal(dec("13.00")), "subtotal %s", o.Subtotal)
	assert.True(t, o.Total.Equal(dec("16.80")), "total %s", o.Total)
	assert.True(t, o.TotalConsistent())
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, o.OrderNumber)
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.True(t, o.Items[0].LineTotal.Equal(dec("10.00")))
	require.NotNil(t, o.EstimatedDeliveryAt)
	assert.Equal(t, "pi_100", o.PaymentID)
	require.NotNil(t, res.Payment)
	assert.Equal(t, "secret", res.Payment.ClientSecret)
}

func TestOrderService_Create_ComputesFeesFromConfig(t *testing.T) {
	svc, d := newOrderService(t)

	d.catalog.On("GetShop", mock.Anything, int64(3)).
		Return(&models.Shop{ID: 3, DeliveryFee: dec("2.00"), IsActive: true}, nil)
	d.catalog.On("GetProducts", mock.Anything, []int64{11}).Return(map[int64]models.Product{
		11: {ID: 11, ShopID: 3, Price: dec("10.00"), StockQuantity: 5, InStock: true},
	}, nil)
	d.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.events.On("OrderChanged", mock.Anything)
	d.events.On("SchedulePaymentCheck", mock.Anything)
	d.users.On("GetByID", mock.Anything, mock.Anything).Return(nil, apperrors.ErrUserNotFound)
	d.gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(nil, apperrors.GatewayUnavailable("stripe is down"))

	res, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
		ShopID:        3,
		Items:         []services.OrderItemInput{{ProductID: 11, Quantity: 2}},
		PaymentMethod: models.PaymentCard,
	})
	require.NoError(t, err, "an unavailable gateway leaves the order payable later")

	// 20.00 + 2.00 delivery + 5% service + 8% tax
	assert.True(t, res.Order.ServiceFee.Equal(dec("1.00")))
	assert.True(t, res.Order.Tax.Equal(dec("1.60")))
	assert.True(t, res.Order.Total.Equal(dec("24.60")), "total %s", res.Order.Total)
	assert.Nil(t, res.Payment)
	assert.Empty(t, res.Order.PaymentID)
	d.orders.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestOrderService_Create_CashOnDeliveryIsSettled(t *testing.T) {
	svc, d := newOrderService(t)

	d.catalog.On("GetShop", mock.Anything, int64(3)).Return(&models.Shop{ID: 3, IsActive: true}, nil)
	d.catalog.On("GetProducts", mock.Anything, mock.Anything).Return(map[int64]models.Product{
		11: {ID: 11, ShopID: 3, Price: dec("4.00"), StockQuantity: 1, InStock: true},
	}, nil)
	d.orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	d.orders.On("Update", mock.Anything, mock.Anything).Return(nil)
	d.events.On("OrderChanged", mock.Anything)
	d.events.On("SchedulePaymentCheck", mock.Anything)
	d.users.On("GetByID", mock.Anything, mock.Anything).Return(&models.User{ID: 7}, nil)
	d.gateway.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(&payments.PaymentIntentResult{IntentID: "cod_0", Status: payments.StatusSucceeded}, nil)

	res, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
		ShopID:        3,
		Items:         []services.OrderItemInput{{ProductID: 11, Quantity: 1}},
		PaymentMethod: models.PaymentCashOnDelivery,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, res.Order.PaymentStatus)
	assert.Equal(t, models.StatusPending, res.Order.Status)
}

func TestOrderService_Create_Rejects(t *testing.T) {
	activeShop := &models.Shop{ID: 3, IsActive: true}

	t.Run("unsupported payment method", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
			ShopID: 3, Items: []services.OrderItemInput{{ProductID: 1, Quantity: 1}}, PaymentMethod: "BARTER",
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("zero quantity", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
			ShopID: 3, Items: []services.OrderItemInput{{ProductID: 1, Quantity: 0}}, PaymentMethod: models.PaymentCard,
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("inactive shop", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.catalog.On("GetShop", mock.Anything, int64(3)).Return(&models.Shop{ID: 3}, nil)

		_, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
			ShopID: 3, Items: []services.OrderItemInput{{ProductID: 1, Quantity: 1}}, PaymentMethod: models.PaymentCard,
		})
		assert.ErrorIs(t, err, apperrors.ErrShopNotFound)
	})

	t.Run("product from another shop", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.catalog.On("GetShop", mock.Anything, int64(3)).Return(activeShop, nil)
		d.catalog.On("GetProducts", mock.Anything, []int64{1}).Return(map[int64]models.Product{
			1: {ID: 1, ShopID: 4, Price: dec("1"), StockQuantity: 9, InStock: true},
		}, nil)

		_, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
			ShopID: 3, Items: []services.OrderItemInput{{ProductID: 1, Quantity: 1}}, PaymentMethod: models.PaymentCard,
		})
		assert.ErrorIs(t, err, apperrors.ErrProductNotFound)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.catalog.On("GetShop", mock.Anything, int64(3)).Return(activeShop, nil)
		d.catalog.On("GetProducts", mock.Anything, []int64{1}).Return(map[int64]models.Product{
			1: {ID: 1, ShopID: 3, Price: dec("1"), StockQuantity: 1, InStock: true},
		}, nil)

		_, err := svc.Create(context.Background(), customer, services.CreateOrderInput{
			ShopID: 3, Items: []services.OrderItemInput{{ProductID: 1, Quantity: 2}}, PaymentMethod: models.PaymentCard,
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.Contains(t, err.Error(), "out of stock")
	})
}

func TestOrderService_Get(t *testing.T) {
	t.Run("cache hit", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(pendingOrder(), nil)

		o, err := svc.Get(context.Background(), customer, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), o.ID)
	})

	t.Run("miss fills the cache", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(nil, nil)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(pendingOrder(), nil)
		d.cache.On("Set", mock.Anything, mock.Anything).Return(nil)

		_, err := svc.Get(context.Background(), admin, 100)
		require.NoError(t, err)
	})

	t.Run("cache failure falls through", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(nil, errors.New("redis down"))
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(pendingOrder(), nil)
		d.cache.On("Set", mock.Anything, mock.Anything).Return(errors.New("redis down"))

		_, err := svc.Get(context.Background(), customer, 100)
		require.NoError(t, err)
	})

	t.Run("another customer's order is not found", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(pendingOrder(), nil)

		_, err := svc.Get(context.Background(), services.Actor{UserID: 8, Role: models.RoleCustomer}, 100)
		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
	})

	t.Run("unassigned courier", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(pendingOrder(), nil)

		_, err := svc.Get(context.Background(), courier, 100)
		assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
	})

	t.Run("shop owner", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.cache.On("Get", mock.Anything, int64(100)).Return(pendingOrder(), nil)
		d.catalog.On("GetShop", mock.Anything, int64(3)).Return(&models.Shop{ID: 3, OwnerID: vendor.UserID}, nil)

		_, err := svc.Get(context.Background(), vendor, 100)
		require.NoError(t, err)
	})
}

func TestOrderService_List_ScopesByRole(t *testing.T) {
	svc, d := newOrderService(t)
	ctx := context.Background()

	d.orders.On("List", mock.Anything, mock.MatchedBy(func(f models.OrderFilter) bool {
		return f.UserID != nil && *f.UserID == customer.UserID && f.Limit == 20
	})).Return([]models.Order{*pendingOrder()}, nil).Once()

	other := int64(99)
	out, err := svc.List(ctx, customer, models.OrderFilter{UserID: &other, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = svc.List(ctx, vendor, models.OrderFilter{})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	_, err = svc.List(ctx, courier, models.OrderFilter{})
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	bogus := models.OrderStatus("LOST")
	_, err = svc.List(ctx, admin, models.OrderFilter{Status: &bogus})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestOrderService_Stats_AdminOnly(t *testing.T) {
	svc, d := newOrderService(t)
	d.orders.On("Stats", mock.Anything).Return([]models.StatusStats{{Status: models.StatusPending, Count: 2}}, nil)

	stats, err := svc.Stats(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, stats, 1)

	_, err = svc.Stats(context.Background(), vendor)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestOrderService_CustomerCancel_Pending(t *testing.T) {
	svc, d := newOrderService(t)
	ctx := context.Background()
	o := pendingOrder()

	d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
	d.orders.On("Update", mock.Anything, mock.MatchedBy(withStatus(models.StatusCancellationRequested))).Return(nil).Once()
	d.orders.On("Update", mock.Anything, mock.MatchedBy(withStatus(models.StatusCancelled))).Return(nil).Once()
	d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil).Twice()
	d.events.On("OrderChanged", eventOf(models.EventCancellationRequested)).Once()
	d.events.On("OrderChanged", eventOf(models.EventOrderCancelled)).Once()

	got, err := svc.CustomerCancel(ctx, customer, 100, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	require.NotNil(t, got.CancellationReason)
	assert.Equal(t, "cancelled by customer", *got.CancellationReason)

	// a second cancel finds the order already cancelled
	_, err = svc.CustomerCancel(ctx, customer, 100, "changed my mind")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestOrderService_CustomerCancel_AcceptedWaitsForShop(t *testing.T) {
	svc, d := newOrderService(t)
	o := pendingOrder()
	o.Status = models.StatusAccepted

	d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
	d.orders.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
	d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
	d.events.On("OrderChanged", eventOf(models.EventCancellationRequested)).Once()

	got, err := svc.CustomerCancel(context.Background(), customer, 100, "too slow")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancellationRequested, got.Status)
	assert.Equal(t, "too slow", *got.CancellationReason)
}

func TestOrderService_CustomerCancel_NotAllowed(t *testing.T) {
	for _, status := range []models.OrderStatus{models.StatusPreparing, models.StatusInDelivery, models.StatusDelivered} {
		t.Run(string(status), func(t *testing.T) {
			svc, d := newOrderService(t)
			o := pendingOrder()
			o.Status = status
			d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

			_, err := svc.CustomerCancel(context.Background(), customer, 100, "")
			assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
			assert.Equal(t, status, o.Status)
			assert.Nil(t, o.CancellationReason)
		})
	}

	t.Run("not a customer", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.CustomerCancel(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})
}

func TestOrderService_UpdateStatus(t *testing.T) {
	t.Run("shop walks the lifecycle", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		d.catalog.On("GetShop", mock.Anything, int64(3)).Return(&models.Shop{ID: 3, OwnerID: vendor.UserID}, nil)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventOrderStatusChanged))

		for _, next := range []models.OrderStatus{models.StatusAccepted, models.StatusPreparing, models.StatusReadyForPickup} {
			got, err := svc.UpdateStatus(context.Background(), vendor, 100, next, "")
			require.NoError(t, err)
			assert.Equal(t, next, got.Status)
		}
	})

	t.Run("skipping a step is rejected", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(pendingOrder(), nil)

		_, err := svc.UpdateStatus(context.Background(), admin, 100, models.StatusDelivered, "")
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
	})

	t.Run("courier delivers", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusInDelivery
		o.DeliveryPersonID = ptr(courier.UserID)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventOrderStatusChanged))

		got, err := svc.UpdateStatus(context.Background(), courier, 100, models.StatusDelivered, "")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDelivered, got.Status)
		assert.NotNil(t, got.DeliveredAt)
	})

	t.Run("courier cannot cancel", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusReadyForPickup
		o.DeliveryPersonID = ptr(courier.UserID)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.UpdateStatus(context.Background(), courier, 100, models.StatusCancelled, "")
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
	})

	t.Run("declined cancellation clears the reason", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusCancellationRequested
		o.CancellationReason = ptr("too slow")
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventOrderStatusChanged))

		got, err := svc.UpdateStatus(context.Background(), admin, 100, models.StatusAccepted, "")
		require.NoError(t, err)
		assert.Nil(t, got.CancellationReason)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.UpdateStatus(context.Background(), admin, 100, "SHIPPED", "")
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestOrderService_AdminCancel(t *testing.T) {
	svc, d := newOrderService(t)
	o := pendingOrder()
	o.Status = models.StatusInDelivery
	d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
	d.orders.On("Update", mock.Anything, o).Return(nil).Once()
	d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
	d.events.On("OrderChanged", eventOf(models.EventOrderCancelled)).Once()

	_, err := svc.AdminCancel(context.Background(), admin, 100, " ")
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	got, err := svc.AdminCancel(context.Background(), admin, 100, "courier accident")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)

	_, err = svc.AdminCancel(context.Background(), admin, 100, "again")
	assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
}

func TestOrderService_UpdateTip(t *testing.T) {
	t.Run("only once delivered", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusInDelivery
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.UpdateTip(context.Background(), customer, 100, dec("3"))
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
		assert.True(t, o.Tip.IsZero())
	})

	t.Run("delivered order keeps its total", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusDelivered
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventTipUpdated))

		got, err := svc.UpdateTip(context.Background(), customer, 100, dec("5.00"))
		require.NoError(t, err)
		assert.True(t, got.Tip.Equal(dec("5")))
		assert.True(t, got.Total.Equal(dec("16.80")))
	})

	t.Run("negative", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.UpdateTip(context.Background(), customer, 100, dec("-1"))
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestOrderService_UpdateFees(t *testing.T) {
	// Subtotal stays the sum of the items and only the total moves with the
	// fees. "Recompute subtotal from the delta" could also be read as folding
	// the adjustment into subtotal; that reading would break the item sum.
	t.Run("recomputes the total", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventFeesUpdated))

		got, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{
			DeliveryFee: ptr(dec("4.00")),
			Discount:    ptr(dec("1.50")),
		})
		require.NoError(t, err)
		assert.True(t, got.Total.Equal(dec("17.30")), "total %s", got.Total)
		assert.True(t, got.Subtotal.Equal(dec("13.00")))
		assert.True(t, got.TotalConsistent())
		assert.Empty(t, got.PaymentID, "intent opened for the old total")
	})

	t.Run("settled payments keep their intent", func(t *testing.T) {
		tests := []struct {
			name   string
			adjust func(o *models.Order)
			want   string
		}{
			{"paid", func(o *models.Order) { o.PaymentStatus = models.PaymentStatusSucceeded }, "pi_100"},
			{"cash on delivery", func(o *models.Order) {
				o.PaymentMethod = models.PaymentCashOnDelivery
				o.PaymentID = "cod_100"
			}, "cod_100"},
			{"accepted", func(o *models.Order) { o.Status = models.StatusAccepted }, "pi_100"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				svc, d := newOrderService(t)
				o := pendingOrder()
				tt.adjust(o)
				d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
				d.orders.On("Update", mock.Anything, o).Return(nil)
				d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
				d.events.On("OrderChanged", eventOf(models.EventFeesUpdated))

				got, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{Discount: ptr(dec("1"))})
				require.NoError(t, err)
				assert.Equal(t, tt.want, got.PaymentID)
			})
		}
	})

	t.Run("concurrent edit is a conflict", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(pendingOrder(), nil)
		d.orders.On("Update", mock.Anything, mock.Anything).Return(apperrors.ErrStaleOrder)

		_, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{Discount: ptr(dec("1"))})
		assert.ErrorIs(t, err, apperrors.ErrStaleOrder)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		d.events.AssertNotCalled(t, "OrderChanged", mock.Anything)
	})

	t.Run("discount larger than the order", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{Discount: ptr(dec("50"))})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
		assert.True(t, o.Discount.IsZero())
		assert.True(t, o.Total.Equal(dec("16.80")))
	})

	t.Run("delivered orders are frozen", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusDelivered
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{Discount: ptr(dec("1"))})
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
	})

	t.Run("nothing to change", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.UpdateFees(context.Background(), admin, 100, services.FeeUpdate{})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("vendor may not", func(t *testing.T) {
		svc, _ := newOrderService(t)
		_, err := svc.UpdateFees(context.Background(), vendor, 100, services.FeeUpdate{Discount: ptr(dec("1"))})
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})
}

func deliveredPaidOrder() *models.Order {
	o := pendingOrder()
	o.Status = models.StatusDelivered
	o.PaymentStatus = models.PaymentStatusSucceeded
	return o
}

func TestOrderService_Refund(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := deliveredPaidOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.gateway.On("ProcessRefund", mock.Anything, mock.MatchedBy(func(r payments.RefundRequest) bool {
			return r.PaymentID == "pi_100" && r.Amount.Equal(dec("16.80"))
		})).Return(&payments.RefundResult{Success: true, RefundID: "re_1", Status: "succeeded", Amount: dec("16.80")}, nil)
		d.orders.On("UpdateWithRefund", mock.Anything, o, mock.MatchedBy(func(r *models.Refund) bool {
			return r.RefundID == "re_1" && r.Amount.Equal(dec("16.80")) && r.Reason == "cold food"
		})).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventOrderRefunded)).Once()

		out, err := svc.Refund(context.Background(), admin, 100, "cold food")
		require.NoError(t, err)
		assert.Equal(t, models.StatusRefunded, out.Order.Status)
		assert.Equal(t, models.PaymentStatusRefunded, out.Order.PaymentStatus)
		assert.True(t, out.Refund.Amount.Equal(dec("16.80")))
	})

	t.Run("webhook recorded the refund first", func(t *testing.T) {
		svc, d := newOrderService(t)
		recorded := deliveredPaidOrder()
		recorded.Status = models.StatusRefunded
		recorded.PaymentStatus = models.PaymentStatusRefunded
		recorded.Version = 2
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(deliveredPaidOrder(), nil).Once()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(recorded, nil).Once()
		d.gateway.On("ProcessRefund", mock.Anything, mock.Anything).
			Return(&payments.RefundResult{Success: true, RefundID: "re_1", Status: "succeeded", Amount: dec("16.80")}, nil)
		d.orders.On("UpdateWithRefund", mock.Anything, mock.Anything, mock.Anything).Return(apperrors.ErrStaleOrder)

		out, err := svc.Refund(context.Background(), admin, 100, "")
		require.NoError(t, err)
		assert.Same(t, recorded, out.Order)
		assert.Equal(t, "re_1", out.Refund.RefundID)
		d.events.AssertNotCalled(t, "OrderChanged", mock.Anything)
	})

	t.Run("stale for another reason stays a conflict", func(t *testing.T) {
		svc, d := newOrderService(t)
		moved := deliveredPaidOrder()
		moved.Version = 2
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(deliveredPaidOrder(), nil).Once()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(moved, nil).Once()
		d.gateway.On("ProcessRefund", mock.Anything, mock.Anything).
			Return(&payments.RefundResult{Success: true, RefundID: "re_1", Status: "succeeded"}, nil)
		d.orders.On("UpdateWithRefund", mock.Anything, mock.Anything, mock.Anything).Return(apperrors.ErrStaleOrder)

		_, err := svc.Refund(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("declined", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := deliveredPaidOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.gateway.On("ProcessRefund", mock.Anything, mock.Anything).
			Return(&payments.RefundResult{Success: false, Status: payments.StatusFailed, Message: "charge disputed"}, nil)

		_, err := svc.Refund(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindPaymentFailed, apperrors.KindOf(err))
		assert.Equal(t, models.StatusDelivered, o.Status)
		assert.Equal(t, models.PaymentStatusSucceeded, o.PaymentStatus)
	})

	t.Run("gateway down", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := deliveredPaidOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.gateway.On("ProcessRefund", mock.Anything, mock.Anything).
			Return(nil, apperrors.GatewayUnavailable("stripe timeout"))

		_, err := svc.Refund(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindGatewayUnavailable, apperrors.KindOf(err))
		assert.Equal(t, models.StatusDelivered, o.Status)
	})

	t.Run("order still in flight", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := deliveredPaidOrder()
		o.Status = models.StatusPreparing
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.Refund(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
	})

	t.Run("nothing was paid", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		o.Status = models.StatusCancelled
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.Refund(context.Background(), admin, 100, "")
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
	})
}

func TestOrderService_AssignDelivery(t *testing.T) {
	accepted := func() *models.Order {
		o := pendingOrder()
		o.Status = models.StatusAccepted
		return o
	}

	t.Run("active courier", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.users.On("GetByID", mock.Anything, int64(50)).
			Return(&models.User{ID: 50, Role: models.RoleDelivery, IsActive: true}, nil)
		o := accepted()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", mock.MatchedBy(func(ev models.OrderEvent) bool {
			return ev.Type == models.EventDeliveryAssigned && ev.DeliveryPersonID != nil && *ev.DeliveryPersonID == 50
		}))

		got, err := svc.AssignDelivery(context.Background(), admin, 100, 50)
		require.NoError(t, err)
		assert.Equal(t, int64(50), *got.DeliveryPersonID)
	})

	rejections := []struct {
		name string
		user *models.User
		err  error
	}{
		{"unknown user", nil, apperrors.ErrUserNotFound},
		{"customer account", &models.User{ID: 50, Role: models.RoleCustomer, IsActive: true}, nil},
		{"inactive courier", &models.User{ID: 50, Role: models.RoleDelivery}, nil},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			svc, d := newOrderService(t)
			d.users.On("GetByID", mock.Anything, int64(50)).Return(tt.user, tt.err)

			_, err := svc.AssignDelivery(context.Background(), admin, 100, 50)
			assert.Equal(t, apperrors.KindInvalidAssignment, apperrors.KindOf(err))
		})
	}

	t.Run("order already out", func(t *testing.T) {
		svc, d := newOrderService(t)
		d.users.On("GetByID", mock.Anything, int64(50)).
			Return(&models.User{ID: 50, Role: models.RoleDelivery, IsActive: true}, nil)
		o := pendingOrder()
		o.Status = models.StatusDelivered
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

		_, err := svc.AssignDelivery(context.Background(), admin, 100, 50)
		assert.Equal(t, apperrors.KindInvalidStateTransition, apperrors.KindOf(err))
		assert.Nil(t, o.DeliveryPersonID)
	})
}

func TestOrderService_ExpireUnpaid(t *testing.T) {
	t.Run("cancels an unpaid card order", func(t *testing.T) {
		svc, d := newOrderService(t)
		o := pendingOrder()
		d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)
		d.orders.On("Update", mock.Anything, o).Return(nil)
		d.cache.On("Invalidate", mock.Anything, int64(100)).Return(nil)
		d.events.On("OrderChanged", eventOf(models.EventOrderCancelled))

		cancelled, err := svc.ExpireUnpaid(context.Background(), 100)
		require.NoError(t, err)
		assert.True(t, cancelled)
		assert.Equal(t, models.StatusCancelled, o.Status)
		assert.Equal(t, "payment not completed", *o.CancellationReason)
	})

	skip := map[string]func(*models.Order){
		"paid":             func(o *models.Order) { o.PaymentStatus = models.PaymentStatusSucceeded },
		"cash on delivery": func(o *models.Order) { o.PaymentMethod = models.PaymentCashOnDelivery },
		"already accepted": func(o *models.Order) { o.Status = models.StatusAccepted },
	}
	for name, modify := range skip {
		t.Run(name, func(t *testing.T) {
			svc, d := newOrderService(t)
			o := pendingOrder()
			modify(o)
			d.orders.On("GetByID", mock.Anything, int64(100)).Return(o, nil)

			cancelled, err := svc.ExpireUnpaid(context.Background(), 100)
			require.NoError(t, err)
			assert.False(t, cancelled)
		})
	}
}
