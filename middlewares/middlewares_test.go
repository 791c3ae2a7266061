package middlewares

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/models"
	"marketplace-api/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func serve(r *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, errorBody) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var body errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		expose      bool
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"not found", apperrors.ErrOrderNotFound, false, http.StatusNotFound, "NOT_FOUND", "order not found"},
		{"state transition", apperrors.InvalidStateTransition("DELIVERED", "CANCELLED"), false, http.StatusConflict, "INVALID_STATE_TRANSITION", "cannot move order from DELIVERED to CANCELLED"},
		{"stale", apperrors.ErrStaleOrder, false, http.StatusConflict, "CONFLICT", apperrors.ErrStaleOrder.Message},
		{"gateway", apperrors.GatewayUnavailable("stripe down"), false, http.StatusServiceUnavailable, "PAYMENT_GATEWAY_UNAVAILABLE", "stripe down"},
		{"internal hidden", errors.New("dial tcp 10.0.0.1:3306: refused"), false, http.StatusInternalServerError, "UNEXPECTED_ERROR", internalMessage},
		{"internal exposed", errors.New("dial tcp 10.0.0.1:3306: refused"), true, http.StatusInternalServerError, "UNEXPECTED_ERROR", "dial tcp 10.0.0.1:3306: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(ErrorHandler(tt.expose))
			r.GET("/x", func(c *gin.Context) { _ = c.Error(tt.err) })

			w, body := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
		})
	}
}

func TestErrorHandler_BindingErrorsAreValidation(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(false))
	r.POST("/x", func(c *gin.Context) {
		var req struct {
			Tip string `json:"tip" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w, body := serve(r, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)

	w, body = serve(r, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body is required", body.Error.Message)
}

func TestAuthMiddleware(t *testing.T) {
	tokens := utils.NewTokenManager("secret", time.Hour)
	customer, _, err := tokens.Issue(7, models.RoleCustomer)
	require.NoError(t, err)
	admin, _, err := tokens.Issue(1, models.RoleAdmin)
	require.NoError(t, err)

	r := gin.New()
	r.Use(ErrorHandler(false))
	api := r.Group("/api", AuthMiddleware(tokens))
	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64(ContextUserID)})
	})
	api.GET("/admin", RequireRole(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	request := func(path, token string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req
	}

	w, body := serve(r, request("/api/me", ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	w, _ = serve(r, request("/api/me", "not-a-token"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = serve(r, request("/api/me", customer))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())

	w, body = serve(r, request("/api/admin", customer))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	w, _ = serve(r, request("/api/admin", admin))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	rl.idle = 0
	rl.Cleanup()
	assert.Empty(t, rl.visitors)
}
