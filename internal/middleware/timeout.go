package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/internal/common"
	"github.com/studyshare/studyshare-backend/pkg/logger"
)

// Timeout bounds the request context so slow database or storage calls are cancelled
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.GetLogger().Warn().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Dur("timeout", d).
				Msg("request timeout")
			if !c.Writer.Written() {
				common.ErrorResponse(c, http.StatusGatewayTimeout, "request timed out", nil)
				c.Abort()
			}
		}
	}
}
