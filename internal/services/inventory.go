package services

import (
	"context"
	"errors"
	"fmt"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Inventory garantit que le stock ne devient jamais négatif : chaque
// réservation est une décrémentation conditionnelle côté stockage.
type Inventory struct {
	products repository.ProductStore
}

func NewInventory(products repository.ProductStore) *Inventory {
	return &Inventory{products: products}
}

// ReservationLine : une quantité à réserver pour un produit déjà chargé.
type ReservationLine struct {
	Product  *models.Product
	Quantity int
}

// CheckStock est une vérification sans effet de bord sur un instantané.
func (inv *Inventory) CheckStock(p *models.Product, qty int) error {
	if qty <= 0 {
		return invalid("quantité invalide pour %q", p.Name)
	}
	if p.Stock < qty {
		return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: p.Stock, Requested: qty}
	}
	return nil
}

func (inv *Inventory) ReserveStock(ctx context.Context, p *models.Product, qty int) error {
	if err := inv.CheckStock(p, qty); err != nil {
		return err
	}
	remaining, err := inv.products.DecrementStock(ctx, p.ID, qty)
	if errors.Is(err, repository.ErrInsufficientStock) {
		// Un achat concurrent est passé entre la lecture et la réservation.
		return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: remaining, Requested: qty}
	}
	if err != nil {
		return fmt.Errorf("réservation %s: %w", p.ID, err)
	}
	log.Debug().Str("product_id", p.ID.String()).Int("qty", qty).Int("remaining", remaining).Msg("📦 Stock réservé")
	return nil
}

func (inv *Inventory) ReleaseStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	stock, err := inv.products.IncrementStock(ctx, productID, qty)
	if err != nil {
		return fmt.Errorf("libération stock %s: %w", productID, err)
	}
	log.Debug().Str("product_id", productID.String()).Int("qty", qty).Int("stock", stock).Msg("📦 Stock libéré")
	return nil
}

// ValidateCartItems vérifie chaque ligne et échoue sur la première
// ligne insuffisante, en nommant le produit.
func (inv *Inventory) ValidateCartItems(ctx context.Context, items []models.CartItem) error {
	for _, item := range items {
		p, err := inv.products.GetProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("produit %s: %w", item.ProductID, err)
		}
		if err := inv.CheckStock(p, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// ReserveItems réserve toutes les lignes ou aucune : en cas d'échec, les
// lignes déjà réservées par cet appel sont libérées.
func (inv *Inventory) ReserveItems(ctx context.Context, lines []ReservationLine) error {
	for i, line := range lines {
		if err := inv.ReserveStock(ctx, line.Product, line.Quantity); err != nil {
			inv.release(ctx, lines[:i])
			return err
		}
	}
	return nil
}

func (inv *Inventory) release(ctx context.Context, lines []ReservationLine) {
	// La compensation doit aboutir même si la requête a été annulée.
	ctx = context.WithoutCancel(ctx)
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if err := inv.ReleaseStock(ctx, line.Product.ID, line.Quantity); err != nil {
			log.Error().Err(err).Str("product_id", line.Product.ID.String()).Int("qty", line.Quantity).
				Msg("❌ Compensation impossible, stock à corriger manuellement")
		}
	}
}

// ReleaseOrderItems restitue le stock de toutes les lignes d'une commande.
func (inv *Inventory) ReleaseOrderItems(ctx context.Context, items []models.OrderItem) error {
	var errs []error
	for _, item := range items {
		if err := inv.ReleaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			log.Error().Err(err).Str("product_id", item.ProductID.String()).Int("qty", item.Quantity).
				Msg("❌ Restitution du stock échouée")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
