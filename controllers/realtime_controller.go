package controllers

import (
	"strconv"
	"strings"

	"marketplace-api/apperrors"
	"marketplace-api/realtime"
	"marketplace-api/services"
	"marketplace-api/utils"

	"github.com/gin-gonic/gin"
)

// RealtimeController upgrades /ws connections. Browsers cannot set headers
// on a websocket handshake, so the token may also come as ?token=.
type RealtimeController struct {
	hub    *realtime.Hub
	tokens *utils.TokenManager
	orders *services.OrderService
}

func NewRealtimeController(hub *realtime.Hub, tokens *utils.TokenManager, orders *services.OrderService) *RealtimeController {
	return &RealtimeController{hub: hub, tokens: tokens, orders: orders}
}

func (h *RealtimeController) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		_ = c.Error(apperrors.Unauthorized("invalid or expired token"))
		return
	}
	a := services.Actor{UserID: claims.UserID, Role: claims.Role}

	rooms, err := h.rooms(c, a)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.hub.ServeWS(c.Writer, c.Request, a.UserID, rooms)
}

// rooms always includes the caller's own room, plus any order or shop feed
// the caller asked for and may see.
func (h *RealtimeController) rooms(c *gin.Context, a services.Actor) ([]string, error) {
	rooms := []string{realtime.UserRoom(a.UserID)}
	ctx := c.Request.Context()

	if raw := c.Query("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.Validation("invalid order_id")
		}
		if _, err := h.orders.Get(ctx, a, id); err != nil {
			return nil, err
		}
		rooms = append(rooms, realtime.OrderRoom(id))
	}
	if raw := c.Query("shop_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, apperrors.Validation("invalid shop_id")
		}
		if err := h.orders.CanWatchShop(ctx, a, id); err != nil {
			return nil, err
		}
		rooms = append(rooms, realtime.ShopRoom(id))
	}
	return rooms, nil
}
