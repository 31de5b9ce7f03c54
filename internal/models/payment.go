package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// CanTransitionTo : une transaction ne quitte pending que vers un statut final.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return s == PaymentPending && next.IsTerminal()
}

// PaymentTransaction trace une tentative de paiement. ExternalID reste nil
// tant que la passerelle n'a pas attribué d'identifiant de session.
type PaymentTransaction struct {
	ID         uuid.UUID       `json:"id" db:"transaction_id"`
	OrderID    uuid.UUID       `json:"order_id" db:"order_id"`
	Gateway    string          `json:"gateway" db:"gateway"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Currency   string          `json:"currency" db:"currency"`
	Status     PaymentStatus   `json:"status" db:"status"`
	ExternalID *string         `json:"external_id,omitempty" db:"external_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}
