package controllers

import (
	"net/http"

	"marketplace-api/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// OrderController serves the customer order endpoints.
type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type tipRequest struct {
	Tip *decimal.Decimal `json:"tip" binding:"required"`
}

func (h *OrderController) CreateOrder(c *gin.Context) {
	defer recordOperation(c, "create")
	a, ok := mustActor(c)
	if !ok {
		return
	}

	var in services.CreateOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.orders.Create(c.Request.Context(), a, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *OrderController) GetUserOrders(c *gin.Context) {
	defer recordOperation(c, "list")
	a, ok := mustActor(c)
	if !ok {
		return
	}

	f, err := listFilter(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	orders, err := h.orders.List(c.Request.Context(), a, f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "limit": f.Limit, "offset": f.Offset})
}

func (h *OrderController) GetOrder(c *gin.Context) {
	defer recordOperation(c, "get")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	o, err := h.orders.Get(c.Request.Context(), a, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderController) CancelOrder(c *gin.Context) {
	defer recordOperation(c, "cancel")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.CustomerCancel(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *OrderController) UpdateTip(c *gin.Context) {
	defer recordOperation(c, "tip")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req tipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.UpdateTip(c.Request.Context(), a, id, *req.Tip)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}
