package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProfileRouter(defaultProfile string) (*gin.Engine, *string) {
	router := gin.New()
	router.Use(Profile(defaultProfile))

	var seen string
	router.GET("/state", func(c *gin.Context) {
		seen = GetProfile(c)
		c.Status(http.StatusOK)
	})
	return router, &seen
}

func TestProfileFromHeader(t *testing.T) {
	router, seen := newProfileRouter("default")

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	req.Header.Set(ProfileHeader, "alice")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", *seen)
}

func TestProfileFallsBackToDefault(t *testing.T) {
	router, seen := newProfileRouter("default")

	req := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "default", *seen)
}

func TestRateLimitPerProfile(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	router := gin.New()
	router.Use(Profile(""), RateLimit(rl))
	router.POST("/quality", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(profile string) int {
		req := httptest.NewRequest(http.MethodPost, "/quality", nil)
		if profile != "" {
			req.Header.Set(ProfileHeader, profile)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusOK, do("alice"))
	assert.Equal(t, http.StatusTooManyRequests, do("alice"), "burst exhausted")

	// a different profile has its own budget
	assert.Equal(t, http.StatusOK, do("bob"))
}
