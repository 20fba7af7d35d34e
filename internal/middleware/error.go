package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "nutriwatch/internal/errors"
	"nutriwatch/internal/logger"
)

const errorCodeKey = "errorCode"

// ErrorHandler renders the last error a handler recorded with c.Error as
// {"error":{"code","message"}}. Handlers record the error and return without
// writing; a handler that already wrote a response keeps it.
func ErrorHandler() gin.HandlerFunc {
	log := logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		appErr := toAppError(err)
		c.Set(errorCodeKey, appErr.Code)

		fields := []interface{}{
			"request_id", GetRequestID(c),
			"code", appErr.Code,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		}
		switch {
		case appErr.Internal != nil:
			log.Errorw("request failed", append(fields, "internal", appErr.Internal.Error())...)
		case appErr == apperrors.ErrInternalServer:
			log.Errorw("unexpected error", append(fields, "error", err.Error())...)
		case appErr.StatusCode >= http.StatusInternalServerError:
			log.Errorw("request failed", fields...)
		default:
			log.Debugw("request rejected", append(fields, "message", appErr.Message)...)
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}

// GetErrorCode returns the error code ErrorHandler rendered for this request.
func GetErrorCode(c *gin.Context) string {
	return c.GetString(errorCodeKey)
}

// toAppError unwraps err to an *AppError. Anything else becomes the generic
// internal error so details do not leak to the client.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.ErrInternalServer
}
