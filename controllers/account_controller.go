package controllers

import (
	"net/http"

	"marketplace-api/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	auth *services.AuthService
}

func NewAuthController(auth *services.AuthService) *AuthController {
	return &AuthController{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PaymentMethodController manages the caller's saved payment methods.
type PaymentMethodController struct {
	methods *services.PaymentMethodService
}

func NewPaymentMethodController(methods *services.PaymentMethodService) *PaymentMethodController {
	return &PaymentMethodController{methods: methods}
}

func (h *PaymentMethodController) List(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	methods, err := h.methods.List(c.Request.Context(), a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

func (h *PaymentMethodController) Add(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	var in services.AddPaymentMethodInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(err)
		return
	}
	m, err := h.methods.Add(c.Request.Context(), a, in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *PaymentMethodController) SetDefault(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.methods.SetDefault(c.Request.Context(), a, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *PaymentMethodController) Remove(c *gin.Context) {
	a, ok := mustActor(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.methods.Remove(c.Request.Context(), a, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
