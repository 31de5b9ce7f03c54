package handlers

import (
	"errors"
	"net/http"

	"ecommerce_back_end/internal/gateway"
	"ecommerce_back_end/internal/repository"
	"ecommerce_back_end/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// RespondError traduit une erreur métier en réponse HTTP. Les erreurs
// inattendues sont journalisées et renvoyées sous un message générique.
func RespondError(c *gin.Context, err error) {
	var (
		stockErr      *services.InsufficientStockError
		transitionErr *services.InvalidTransitionError
		validationErr *services.ValidationError
		signatureErr  *gateway.SignatureVerificationError
	)

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Stock insuffisant",
			"product":   stockErr.ProductName,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":  "Transition de commande impossible",
			"status": transitionErr.From,
		})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.As(err, &signatureErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Signature invalide"})
	case errors.Is(err, gateway.ErrMalformedPayload):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contenu du webhook invalide"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Ressource introuvable"})
	case errors.Is(err, repository.ErrProductInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "Produit référencé par des commandes"})
	case errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Ressource déjà existante"})
	case errors.Is(err, repository.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Requête invalide"})
	case errors.Is(err, services.ErrGateway):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("❌ Passerelle de paiement")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Passerelle de paiement indisponible"})
	default:
		log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("❌ Erreur interne")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur serveur"})
	}
}

// ParamUUID lit un paramètre de route ; répond 400 s'il n'est pas un UUID.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identifiant invalide"})
		return uuid.Nil, false
	}
	return id, true
}

// BadRequest répond 400 avec le message de binding gin.
func BadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
