package controllers

import (
	"io"
	"log/slog"
	"net/http"

	"marketplace-api/apperrors"
	"marketplace-api/logger"
	"marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// maxWebhookBody caps what is read before the signature is checked.
const maxWebhookBody = 1 << 20

type PaymentController struct {
	payments        *services.PaymentService
	signatureHeader string
}

// NewPaymentController takes the signature header of the configured provider.
func NewPaymentController(payments *services.PaymentService, signatureHeader string) *PaymentController {
	return &PaymentController{payments: payments, signatureHeader: signatureHeader}
}

type intentRequest struct {
	OrderID int64 `json:"order_id" binding:"required"`
}

type confirmRequest struct {
	OrderID         int64  `json:"order_id" binding:"required"`
	PaymentMethodID string `json:"payment_method_id"`
}

func (h *PaymentController) CreateIntent(c *gin.Context) {
	defer recordOperation(c, "payment_intent")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	var req intentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.payments.CreateIntent(c.Request.Context(), a, req.OrderID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentController) Confirm(c *gin.Context) {
	defer recordOperation(c, "payment_confirm")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	var req confirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.payments.Confirm(c.Request.Context(), a, req.OrderID, req.PaymentMethodID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentController) Status(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "orderId")
	if !ok {
		return
	}

	res, err := h.payments.Status(c.Request.Context(), a, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Webhook returns a handler for provider's notification route. The body is
// read raw since signatures cover the exact bytes.
func (h *PaymentController) Webhook(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			_ = c.Error(apperrors.Validation("unreadable webhook body"))
			return
		}
		signature := ""
		if h.signatureHeader != "" {
			signature = c.GetHeader(h.signatureHeader)
		}

		if err := h.payments.HandleWebhook(c.Request.Context(), provider, payload, signature); err != nil {
			slog.WarnContext(c.Request.Context(), "webhook rejected",
				slog.String("provider", provider), logger.Err(err))
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
