package models

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Cart associe un produit à la quantité demandée (toujours >= 1).
type Cart map[uuid.UUID]int

type CartItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// Items retourne le panier sous forme de lignes, dans un ordre stable.
func (c Cart) Items() []CartItem {
	items := make([]CartItem, 0, len(c))
	for productID, qty := range c {
		items = append(items, CartItem{ProductID: productID, Quantity: qty})
	}
	slices.SortFunc(items, func(a, b CartItem) int {
		return strings.Compare(a.ProductID.String(), b.ProductID.String())
	})
	return items
}
