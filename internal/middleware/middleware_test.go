package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testContext mirrors testing.T.Context (Go 1.24+) for older toolchains.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func token(t *testing.T, role string, ttl time.Duration) (string, uuid.UUID) {
	t.Helper()
	user := models.User{ID: uuid.New(), Email: "alice@example.com", Role: role}
	tok, err := utils.GenerateJWT(user, testSecret, ttl)
	require.NoError(t, err)
	return tok, user.ID
}

func newAuthRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		id, ok := UserID(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, id.String())
	})
	r.GET("/admin", AuthRequired(testSecret), RequireAdmin, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, method, path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	r := newAuthRouter()
	valid, userID := token(t, models.RoleCustomer, time.Hour)
	expired, _ := token(t, models.RoleCustomer, -time.Minute)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"sans header", "", http.StatusUnauthorized},
		{"mauvais schéma", "Basic " + valid, http.StatusUnauthorized},
		{"token expiré", "Bearer " + expired, http.StatusUnauthorized},
		{"token altéré", "Bearer " + valid + "x", http.StatusUnauthorized},
		{"token valide", "Bearer " + valid, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/me", tt.header)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := do(r, http.MethodGet, "/me", "Bearer "+valid)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	r := newAuthRouter()
	customer, _ := token(t, models.RoleCustomer, time.Hour)
	admin, _ := token(t, models.RoleAdmin, time.Hour)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "Bearer "+customer).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", "Bearer "+admin).Code)
}

func TestRateLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	r := gin.New()
	r.GET("/cart", RateLimit(limiter, "cart_add", 2, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/cart", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/cart", "").Code)
	w := do(r, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))

	// Nouvelle fenêtre.
	limiter.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/cart", "").Code)
}

func TestLoginRateLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	succeed := false
	r := gin.New()
	r.POST("/login", LoginRateLimit(limiter), func(c *gin.Context) {
		if succeed {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusUnauthorized)
	})

	for i := 0; i < LoginMaxAttempts; i++ {
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/login", "").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/login", "").Code)

	require.NoError(t, limiter.Reset(testContext(t), "login_attempts:192.0.2.1"))
	succeed = true
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/login", "").Code)
}
