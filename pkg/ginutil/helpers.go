package ginutil

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ParamUint extracts a positive unsigned id from path parameters
func ParamUint(c *gin.Context, key string) (uint, error) {
	value, err := strconv.ParseUint(c.Param(key), 10, 64)
	if err != nil {
		return 0, err
	}
	if value == 0 {
		return 0, strconv.ErrRange
	}
	return uint(value), nil
}

// HeaderOrQuery returns the header value, falling back to the query parameter
func HeaderOrQuery(c *gin.Context, header, query string) string {
	if v := c.GetHeader(header); v != "" {
		return v
	}
	return c.Query(query)
}
