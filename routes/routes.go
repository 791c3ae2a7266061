package routes

import (
	"net/http"

	"marketplace-api/controllers"
	"marketplace-api/middlewares"
	"marketplace-api/models"
	"marketplace-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Orders         *controllers.OrderController
	AdminOrders    *controllers.AdminOrderController
	Payments       *controllers.PaymentController
	PaymentMethods *controllers.PaymentMethodController
	Auth           *controllers.AuthController
	Realtime       *controllers.RealtimeController
}

func Register(r *gin.Engine, h Handlers, tokens *utils.TokenManager) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", h.Realtime.Serve)

	public := r.Group("/api")
	{
		public.POST("/auth/login", h.Auth.Login)
		public.POST("/payments/webhooks/stripe", h.Payments.Webhook("stripe"))
		public.POST("/payments/webhooks/razorpay", h.Payments.Webhook("razorpay"))
	}

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware(tokens))
	{
		customer := api.Group("", middlewares.RequireRole(models.RoleCustomer))
		customer.POST("/orders", h.Orders.CreateOrder)
		customer.GET("/orders", h.Orders.GetUserOrders)
		customer.GET("/orders/:id", h.Orders.GetOrder)
		customer.POST("/orders/:id/cancel", h.Orders.CancelOrder)
		customer.PATCH("/orders/:id/tip", h.Orders.UpdateTip)

		customer.POST("/payments/intent", h.Payments.CreateIntent)
		customer.POST("/payments/confirm", h.Payments.Confirm)
		customer.GET("/payments/:orderId/status", h.Payments.Status)

		customer.GET("/payment-methods", h.PaymentMethods.List)
		customer.POST("/payment-methods", h.PaymentMethods.Add)
		customer.PATCH("/payment-methods/:id/default", h.PaymentMethods.SetDefault)
		customer.DELETE("/payment-methods/:id", h.PaymentMethods.Remove)

		admin := api.Group("/admin/orders")
		staff := middlewares.RequireRole(models.RoleAdmin, models.RoleVendor)
		adminOnly := middlewares.RequireRole(models.RoleAdmin)

		admin.GET("", staff, h.AdminOrders.ListOrders)
		admin.GET("/stats", adminOnly, h.AdminOrders.Stats)
		admin.GET("/:id", middlewares.RequireRole(models.RoleAdmin, models.RoleVendor, models.RoleDelivery), h.AdminOrders.GetOrder)
		admin.PATCH("/:id/status", middlewares.RequireRole(models.RoleAdmin, models.RoleVendor, models.RoleDelivery), h.AdminOrders.UpdateStatus)
		admin.POST("/:id/assign", staff, h.AdminOrders.AssignDelivery)
		admin.POST("/:id/cancel", staff, h.AdminOrders.CancelOrder)
		admin.POST("/:id/refund", adminOnly, h.AdminOrders.RefundOrder)
		admin.PATCH("/:id/fees", adminOnly, h.AdminOrders.UpdateFees)
	}
}
