package controllers

import (
	"errors"
	"io"
	"strconv"

	"marketplace-api/apperrors"
	"marketplace-api/middlewares"
	"marketplace-api/models"
	"marketplace-api/services"

	"github.com/gin-gonic/gin"
)

// actor reads the caller set by AuthMiddleware.
func actor(c *gin.Context) (services.Actor, bool) {
	id, ok := c.Get(middlewares.ContextUserID)
	if !ok {
		return services.Actor{}, false
	}
	role, _ := c.Get(middlewares.ContextRole)
	userID, _ := id.(int64)
	r, _ := role.(models.Role)
	if userID == 0 || r == "" {
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, Role: r}, true
}

// mustActor pushes 401 when the request carries no caller.
func mustActor(c *gin.Context) (services.Actor, bool) {
	a, ok := actor(c)
	if !ok {
		_ = c.Error(apperrors.Unauthorized("user not authenticated"))
	}
	return a, ok
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(apperrors.Validation("invalid %s", name))
		return 0, false
	}
	return id, true
}

func queryInt64(c *gin.Context, name string) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.Validation("invalid %s", name)
	}
	return &v, nil
}

// listFilter parses status, shop_id, user_id, limit and offset.
func listFilter(c *gin.Context) (models.OrderFilter, error) {
	var f models.OrderFilter
	if s := c.Query("status"); s != "" {
		status := models.OrderStatus(s)
		f.Status = &status
	}
	var err error
	if f.ShopID, err = queryInt64(c, "shop_id"); err != nil {
		return f, err
	}
	if f.UserID, err = queryInt64(c, "user_id"); err != nil {
		return f, err
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if raw := c.Query(name); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return f, apperrors.Validation("invalid %s", name)
			}
			*dst = v
		}
	}
	f.Normalize()
	return f, nil
}

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// recordOperation counts the handler's outcome once the response is written.
func recordOperation(c *gin.Context, operation string) {
	status := c.Writer.Status()
	middlewares.RecordOrderOperation(operation, len(c.Errors) == 0 && status >= 200 && status < 300)
}
