package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusConfirmed OrderStatus = "CONFIRMED" // paiement reçu, stock déjà réservé
	StatusShipped   OrderStatus = "SHIPPED"
	StatusCancelled OrderStatus = "CANCELLED"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	StatusPending: {
		StatusConfirmed: true,
		StatusCancelled: true,
	},
	StatusConfirmed: {
		StatusShipped: true,
	},
	StatusShipped:   {},
	StatusCancelled: {},
}

func (s OrderStatus) String() string {
	return string(s)
}

// IsTerminal indique qu'aucune transition n'est possible depuis ce statut.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowedTransitions[s][next]
}

type Order struct {
	ID         uuid.UUID       `json:"id" db:"order_id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	Items      []OrderItem     `json:"items" db:"-"`
	TotalPrice decimal.Decimal `json:"total_price" db:"total_price"`
	Status     OrderStatus     `json:"status" db:"status"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem fige le prix unitaire au moment de la commande.
type OrderItem struct {
	ID          uuid.UUID       `json:"id" db:"item_id"`
	OrderID     uuid.UUID       `json:"order_id" db:"order_id"`
	Position    int             `json:"position" db:"position"` // rang de la ligne dans la commande
	ProductID   uuid.UUID       `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ComputeTotal additionne prix unitaire × quantité sur toutes les lignes.
func ComputeTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderEvent est publié sur le bus à chaque transition de commande.
type OrderEvent struct {
	Type       string          `json:"type"` // order.created, order.confirmed, order.cancelled, order.shipped
	OrderID    uuid.UUID       `json:"order_id"`
	UserID     uuid.UUID       `json:"user_id"`
	Status     OrderStatus     `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []OrderItem     `json:"items,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
