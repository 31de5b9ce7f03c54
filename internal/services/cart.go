package services

import (
	"context"
	"fmt"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CartLine est une ligne de panier enrichie pour l'affichage.
type CartLine struct {
	models.CartItem
	Product *models.Product `json:"product,omitempty"`
}

type Carts struct {
	store     cache.CartStore
	products  repository.ProductStore
	inventory *Inventory
	flow      *OrderFlow
}

func NewCarts(store cache.CartStore, products repository.ProductStore, inventory *Inventory, flow *OrderFlow) *Carts {
	return &Carts{store: store, products: products, inventory: inventory, flow: flow}
}

// GetCart renvoie les lignes du panier ; les produits supprimés du
// catalogue sont retirés au passage.
func (c *Carts) GetCart(ctx context.Context, userID uuid.UUID) ([]CartLine, error) {
	cart, err := c.store.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := make([]CartLine, 0, len(cart))
	for _, item := range cart.Items() {
		p, err := c.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			log.Debug().Err(err).Str("product_id", item.ProductID.String()).Msg("Produit du panier indisponible")
			continue
		}
		lines = append(lines, CartLine{CartItem: item, Product: p})
	}
	return lines, nil
}

// AddItem cumule la quantité si le produit est déjà dans le panier.
func (c *Carts) AddItem(ctx context.Context, userID, productID uuid.UUID, qty int) (models.Cart, error) {
	if qty < 1 {
		return nil, invalid("la quantité doit être au moins 1")
	}
	if _, err := c.products.GetProduct(ctx, productID); err != nil {
		return nil, fmt.Errorf("produit %s: %w", productID, err)
	}
	cart, err := c.store.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	cart[productID] += qty
	if err := c.store.SetCart(ctx, userID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (c *Carts) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (models.Cart, error) {
	cart, err := c.store.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, ok := cart[productID]; !ok {
		return nil, repository.ErrNotFound
	}
	delete(cart, productID)
	if err := c.store.SetCart(ctx, userID, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (c *Carts) Clear(ctx context.Context, userID uuid.UUID) error {
	return c.store.ClearCart(ctx, userID)
}

// Checkout crée la commande à partir des lignes fournies ou, à défaut, du
// panier, qui est alors vidé.
func (c *Carts) Checkout(ctx context.Context, userID uuid.UUID, items []models.CartItem) (*models.Order, error) {
	fromCart := len(items) == 0
	if fromCart {
		cart, err := c.store.GetCart(ctx, userID)
		if err != nil {
			return nil, err
		}
		items = cart.Items()
	}
	if len(items) == 0 {
		return nil, invalid("le panier est vide")
	}

	if err := c.inventory.ValidateCartItems(ctx, items); err != nil {
		return nil, err
	}
	order, err := c.flow.CreateOrder(ctx, userID, items)
	if err != nil {
		return nil, err
	}

	if fromCart {
		if err := c.store.ClearCart(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("⚠️ Panier non vidé après commande")
		}
	}
	return order, nil
}
