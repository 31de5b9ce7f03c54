package services

import (
	"errors"
	"fmt"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("email ou mot de passe incorrect")
	ErrGateway            = errors.New("erreur de la passerelle de paiement")
)

// ValidationError : requête invalide (400).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type InsufficientStockError struct {
	ProductID   uuid.UUID
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuffisant pour %q : %d disponible(s), %d demandé(s)", e.ProductName, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == repository.ErrInsufficientStock
}

type InvalidTransitionError struct {
	OrderID uuid.UUID
	From    models.OrderStatus
	To      models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("commande %s au statut final %s : passage à %s impossible", e.OrderID, e.From, e.To)
	}
	return fmt.Sprintf("transition impossible pour la commande %s : %s -> %s", e.OrderID, e.From, e.To)
}

// UnknownTransactionError : webhook authentique pour une session inconnue.
type UnknownTransactionError struct {
	ExternalID string
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("aucune transaction pour l'identifiant externe %s", e.ExternalID)
}
