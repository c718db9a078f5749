package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
)

// RequestLogger writes one structured line per request
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if u, ok := CurrentUser(c); ok {
			fields = append(fields, logger.String("user_id", u.ID))
		}
		if p, ok := CurrentPrincipal(c); ok {
			if u, _ := CurrentUser(c); u != nil && u.ID != p.ID {
				fields = append(fields, logger.String("impersonated_by", p.ID))
			}
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case status >= http.StatusBadRequest:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

// Recovery turns panics into a 500 envelope
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					logger.Any("panic", r),
					logger.String("path", c.Request.URL.Path),
				)
				abortWithError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
			}
		}()
		c.Next()
	}
}
