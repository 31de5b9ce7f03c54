package repository

import (
	"context"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
)

// ProductStore est le catalogue. Toute variation de stock passe par
// DecrementStock / IncrementStock, qui sont des lectures-écritures atomiques.
type ProductStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	// UpdateProduct met à jour les champs descriptifs, jamais le stock.
	UpdateProduct(ctx context.Context, p *models.Product) error
	SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	// DecrementStock retire qty du stock si et seulement si stock >= qty,
	// sinon ErrInsufficientStock. Retourne le nouveau stock.
	DecrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error)
}

type CategoryStore interface {
	GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, c *models.Category) error
	DeleteCategory(ctx context.Context, id uuid.UUID) error
}

type OrderStore interface {
	// CreateOrder persiste la commande et ses lignes en une seule unité.
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	// TransitionOrderStatus applique from -> to seulement si le statut courant
	// vaut from. Sinon applied=false et current contient le statut lu.
	TransitionOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (applied bool, current models.OrderStatus, err error)
}

type PaymentStore interface {
	CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error)
	GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error)
	ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error)
	AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error
	TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus) (applied bool, current models.PaymentStatus, err error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store regroupe les dépôts d'un même backend (scylla, postgres ou memory).
type Store struct {
	Products   ProductStore
	Categories CategoryStore
	Orders     OrderStore
	Payments   PaymentStore
	Users      UserStore
}
