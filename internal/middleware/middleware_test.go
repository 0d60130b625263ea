package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studyshare/studyshare-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userID": GetUserID(c), "producer": IsProducer(c)})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret", 60)
	token, err := manager.GenerateAccessToken("user-1", "ana")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", JWTAuth(manager), whoami)

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"userID":"user-1"`)
	})

	t.Run("token query", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing", func(t *testing.T) {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Token "+token)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := jwt.NewManager("other-secret", 60).GenerateAccessToken("user-1", "")
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+other)
		assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	})
}

func TestOptionalJWTAuth(t *testing.T) {
	manager := jwt.NewManager("test-secret", 60)
	token, err := manager.GenerateAccessToken("user-1", "")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", OptionalJWTAuth(manager), whoami)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userID":""`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me?token=garbage", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userID":""`)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Contains(t, w.Body.String(), `"userID":"user-1"`)
}

func TestProducerAPIKey(t *testing.T) {
	r := gin.New()
	r.POST("/insights", ProducerAPIKey([]string{"k1", "k2"}), whoami)

	req := httptest.NewRequest(http.MethodPost, "/insights", nil)
	req.Header.Set("X-API-Key", "k2")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"producer":true`)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodPost, "/insights", nil)).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodPost, "/insights?api_key=k3", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/insights?api_key=k1", nil)).Code)
}

func TestProducerAPIKey_NoKeysConfigured(t *testing.T) {
	r := gin.New()
	r.POST("/insights", ProducerAPIKey(nil), whoami)

	req := httptest.NewRequest(http.MethodPost, "/insights", nil)
	req.Header.Set("X-API-Key", "")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodPost, "/insights?api_key=x", nil)).Code)
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/slow", Timeout(20*time.Millisecond), func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", Timeout(time.Second), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusGatewayTimeout, serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil)).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/fast", nil)).Code)
}

func TestRateLimitPerUser_WithoutRedisPasses(t *testing.T) {
	r := gin.New()
	r.POST("/vote", RateLimitPerUser(nil, RateLimitConfig{RequestsPerMinute: 1}), whoami)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodPost, "/vote", nil)).Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 8)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "given")
	assert.Equal(t, "given", serve(r, req).Header().Get("X-Request-ID"))
}
