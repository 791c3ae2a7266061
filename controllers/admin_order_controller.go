package controllers

import (
	"net/http"

	"marketplace-api/models"
	"marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// AdminOrderController serves shop staff, couriers and administrators. The
// service decides what each role may touch.
type AdminOrderController struct {
	orders *services.OrderService
}

func NewAdminOrderController(orders *services.OrderService) *AdminOrderController {
	return &AdminOrderController{orders: orders}
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
	Reason string             `json:"reason"`
}

type assignRequest struct {
	DeliveryPersonID int64 `json:"delivery_person_id" binding:"required"`
}

type adminCancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminOrderController) ListOrders(c *gin.Context) {
	defer recordOperation(c, "admin_list")
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

func (h *AdminOrderController) Stats(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	stats, err := h.orders.Stats(c.Request.Context(), a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *AdminOrderController) GetOrder(c *gin.Context) {
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

func (h *AdminOrderController) UpdateStatus(c *gin.Context) {
	defer recordOperation(c, "status")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.UpdateStatus(c.Request.Context(), a, id, req.Status, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *AdminOrderController) AssignDelivery(c *gin.Context) {
	defer recordOperation(c, "assign")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.AssignDelivery(c.Request.Context(), a, id, req.DeliveryPersonID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *AdminOrderController) CancelOrder(c *gin.Context) {
	defer recordOperation(c, "admin_cancel")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req adminCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.AdminCancel(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *AdminOrderController) RefundOrder(c *gin.Context) {
	defer recordOperation(c, "refund")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req refundRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		_ = c.Error(err)
		return
	}

	out, err := h.orders.Refund(c.Request.Context(), a, id, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminOrderController) UpdateFees(c *gin.Context) {
	defer recordOperation(c, "fees")
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req services.FeeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}

	o, err := h.orders.UpdateFees(c.Request.Context(), a, id, req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, o)
}
