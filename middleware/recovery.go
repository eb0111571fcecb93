package middleware

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/AnTengye/tenderanalyzer/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Recovery turns a panic into a 500. API callers get JSON, browsers get a
// plain message carrying the request ID.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				requestID := GetRequestID(c)

				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)

				if strings.HasPrefix(c.Request.URL.Path, "/api") {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
						"error":      "Internal server error",
						"request_id": requestID,
					})
					return
				}
				c.Abort()
				c.String(http.StatusInternalServerError, "Internal server error (request %s)", requestID)
			}
		}()

		c.Next()
	}
}
