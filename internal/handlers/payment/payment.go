package payment

import (
	"errors"
	"io"
	"net/http"

	"ecommerce_back_end/internal/handlers"
	"ecommerce_back_end/internal/middleware"
	"ecommerce_back_end/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxWebhookBodyBytes = int64(65536)

type Handler struct {
	payments *services.Payments
}

func NewHandler(payments *services.Payments) *Handler {
	return &Handler{payments: payments}
}

// CreateCheckoutSession : POST /api/payments/stripe/create-session
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Utilisateur non authentifié"})
		return
	}
	var in struct {
		OrderID    uuid.UUID `json:"order_id" binding:"required"`
		SuccessURL string    `json:"success_url"`
		CancelURL  string    `json:"cancel_url"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		handlers.BadRequest(c, err)
		return
	}

	session, err := h.payments.CreateSession(c.Request.Context(), userID, in.OrderID, in.SuccessURL, in.CancelURL)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// StripeWebhook : POST /api/payments/stripe/webhook. Un 200 est renvoyé
// pour tout événement authentique, traité ou ignoré ; une erreur interne
// renvoie 500 pour que Stripe relivre.
func (h *Handler) StripeWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Corps trop volumineux"})
			return
		}
		log.Error().Err(err).Msg("❌ Lecture du webhook")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Lecture impossible"})
		return
	}

	event, err := h.payments.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "event_type": event.Type})
}
