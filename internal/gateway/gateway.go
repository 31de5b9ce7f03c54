// Package gateway isole les passerelles de paiement (création de session,
// vérification et décodage des webhooks).
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrMalformedPayload : signature valide mais contenu inexploitable.
var ErrMalformedPayload = errors.New("payload webhook invalide")

// SignatureVerificationError : le webhook n'est pas authentique.
type SignatureVerificationError struct {
	Err error
}

func (e *SignatureVerificationError) Error() string {
	return fmt.Sprintf("signature webhook invalide: %v", e.Err)
}

func (e *SignatureVerificationError) Unwrap() error {
	return e.Err
}

type SessionRequest struct {
	OrderID       uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

type Session struct {
	ID  string // identifiant externe, reporté dans les webhooks
	URL string
}

type EventKind string

const (
	EventSucceeded EventKind = "succeeded"
	EventFailed    EventKind = "failed"
	EventIgnored   EventKind = "ignored"
)

// Event est un webhook vérifié et réduit à ce dont le flux de paiement a besoin.
type Event struct {
	ID         string
	Type       string
	Kind       EventKind
	ExternalID string
	OrderID    string // métadonnée, informative
}

type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// ParseWebhook vérifie la signature avant toute lecture du contenu.
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
}

// MinorUnits convertit un montant en centimes (arrondi au plus proche).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
