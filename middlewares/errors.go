package middlewares

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"marketplace-api/apperrors"
	"marketplace-api/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const internalMessage = "internal server error"

// ErrorHandler renders the last error pushed with c.Error as
// {"error": {"code", "message"}}. Unexpected errors are logged and their
// details hidden unless exposeInternal is set.
func ErrorHandler(exposeInternal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status, code, message := classify(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(c.Request.Context(), "request failed",
				logger.Err(err),
				logger.Traced(c.Request.Context()),
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
			)
			if !exposeInternal && code == apperrors.KindUnexpected {
				message = internalMessage
			}
		}

		c.AbortWithStatusJSON(status, gin.H{
			"error": gin.H{"code": code, "message": message},
		})
	}
}

func classify(err error) (int, apperrors.Kind, string) {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		message := appErr.Message
		if appErr.Kind == apperrors.KindUnexpected && appErr.Err != nil {
			message = appErr.Error()
		}
		return appErr.HTTPStatus(), appErr.Kind, message
	}

	if errors.Is(err, io.EOF) {
		return http.StatusBadRequest, apperrors.KindValidation, "request body is required"
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return http.StatusBadRequest, apperrors.KindValidation, "request body is truncated"
	}

	var validationErrs validator.ValidationErrors
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &validationErrs) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return http.StatusBadRequest, apperrors.KindValidation, err.Error()
	}
	return http.StatusInternalServerError, apperrors.KindUnexpected, err.Error()
}
