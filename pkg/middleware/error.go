package middleware

import (
	"errors"
	"net/http"

	"ledgersync/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached to the gin context. BaseError values
// keep their status; anything else becomes a 500 with a generic body.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			if be.Code.HTTPStatus() >= http.StatusInternalServerError {
				zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(last.Err))
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		zap.L().Error("unhandled request error", zap.String("path", c.FullPath()), zap.Error(last.Err))
		c.JSON(http.StatusInternalServerError, errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal server error",
		}.JSON())
	}
}

// Logger writes one structured line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		zap.L().Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
