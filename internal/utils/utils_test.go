package utils

import (
	"strings"
	"testing"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("motdepasse-solide")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("motdepasse-solide", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("mauvais", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyPassword("x", "$2a$10$bcrypthash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestJWTRoundTrip(t *testing.T) {
	user := models.User{ID: uuid.New(), Email: "alice@example.com", Role: models.RoleAdmin}

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	_, err = ParseJWT(token, "autre-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	user := models.User{ID: uuid.New(), Email: "bob@example.com", Role: models.RoleCustomer}
	token, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOrderConfirmationHTML(t *testing.T) {
	order := models.Order{
		ID:         uuid.New(),
		TotalPrice: decimal.RequireFromString("59.80"),
		Items: []models.OrderItem{
			{ProductName: "Clavier <pro>", Quantity: 2, UnitPrice: decimal.RequireFromString("29.90")},
		},
	}

	html, err := OrderConfirmationHTML(order)
	require.NoError(t, err)
	assert.Contains(t, html, order.ID.String())
	assert.Contains(t, html, "Clavier &lt;pro&gt;")
	assert.Contains(t, html, "59.80")
}
