package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/internal/common"
)

// ProducerAPIKey authenticates trusted backend producers (the insight and
// friend-request services). Checks X-API-Key header or api_key query parameter.
func ProducerAPIKey(keys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" {
			common.ErrorResponse(c, http.StatusUnauthorized, "API key required", nil)
			c.Abort()
			return
		}

		if !validKey(keys, key) {
			common.ErrorResponse(c, http.StatusUnauthorized, "Invalid API key", nil)
			c.Abort()
			return
		}

		c.Set("producer", true)
		c.Next()
	}
}

// IsProducer reports whether the request was authenticated by ProducerAPIKey
func IsProducer(c *gin.Context) bool {
	return c.GetBool("producer")
}

func validKey(keys []string, key string) bool {
	match := 0
	for _, k := range keys {
		match |= subtle.ConstantTimeCompare([]byte(k), []byte(key))
	}
	return match == 1
}
