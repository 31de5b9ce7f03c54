package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/inf.v0"
)

const productColumns = `product_id, name, description, price, stock, category_id, image_url, created_at, updated_at`

// ScyllaProductStore : catalogue dans le keyspace produits. Toutes les
// écritures sur la table products passent par des LWT pour ne jamais
// mélanger écritures conditionnelles et non conditionnelles sur une ligne.
type ScyllaProductStore struct {
	products *gocql.Session
	orders   *gocql.Session // index order_items_by_product
}

func NewScyllaProductStore(products, orders *gocql.Session) *ScyllaProductStore {
	return &ScyllaProductStore{products: products, orders: orders}
}

func scanProduct(scan func(dest ...interface{}) error) (*models.Product, error) {
	var (
		id         gocql.UUID
		categoryID *gocql.UUID
		price      = new(inf.Dec)
		p          models.Product
	)
	if err := scan(&id, &p.Name, &p.Description, price, &p.Stock, &categoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = uuid.UUID(id)
	p.Price = fromCQLDecimal(price)
	p.CategoryID = fromCQLUUIDPtr(categoryID)
	return &p, nil
}

func (s *ScyllaProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	q := s.products.Query(`SELECT `+productColumns+` FROM products WHERE product_id = ?`, toCQLUUID(id)).WithContext(ctx)
	p, err := scanProduct(q.Scan)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture produit %s: %w", id, err)
	}
	return p, nil
}

// ListProducts lit toute la table puis filtre en Go : le catalogue reste
// de taille modeste et Scylla ne supporte pas les filtres ad hoc.
func (s *ScyllaProductStore) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	iter := s.products.Query(`SELECT ` + productColumns + ` FROM products`).WithContext(ctx).Iter()
	scanner := iter.Scanner()

	var all []models.Product
	for scanner.Next() {
		p, err := scanProduct(scanner.Scan)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Produit illisible ignoré")
			continue
		}
		all = append(all, *p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("listing produits: %w", err)
	}
	return ApplyProductFilter(all, filter), nil
}

func (s *ScyllaProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Stock < 0 || p.Price.IsNegative() {
		return ErrInvalidInput
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	applied, err := s.products.Query(`INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
		toCQLUUID(p.ID), p.Name, p.Description, toCQLDecimal(p.Price), p.Stock,
		toCQLUUIDPtr(p.CategoryID), p.ImageURL, p.CreatedAt, p.UpdatedAt,
	).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("création produit: %w", err)
	}
	if !applied {
		return ErrDuplicate
	}
	return nil
}

func (s *ScyllaProductStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	if p.Price.IsNegative() {
		return ErrInvalidInput
	}
	p.UpdatedAt = time.Now().UTC()
	applied, err := s.products.Query(`UPDATE products
		SET name = ?, description = ?, price = ?, category_id = ?, updated_at = ?
		WHERE product_id = ? IF EXISTS`,
		p.Name, p.Description, toCQLDecimal(p.Price), toCQLUUIDPtr(p.CategoryID), p.UpdatedAt, toCQLUUID(p.ID),
	).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("mise à jour produit %s: %w", p.ID, err)
	}
	if !applied {
		return ErrNotFound
	}
	updated, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

func (s *ScyllaProductStore) SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	applied, err := s.products.Query(`UPDATE products SET image_url = ?, updated_at = ? WHERE product_id = ? IF EXISTS`,
		imageURL, time.Now().UTC(), toCQLUUID(id),
	).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("mise à jour image %s: %w", id, err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct refuse la suppression tant qu'une ligne de commande
// référence le produit. Lecture de l'index puis suppression : une commande
// enregistrée entre les deux n'est pas détectée.
func (s *ScyllaProductStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	var orderID gocql.UUID
	err := s.orders.Query(`SELECT order_id FROM order_items_by_product WHERE product_id = ? LIMIT 1`, toCQLUUID(id)).
		WithContext(ctx).Scan(&orderID)
	switch {
	case err == nil:
		return ErrProductInUse
	case !errors.Is(err, gocql.ErrNotFound):
		return fmt.Errorf("vérification commandes du produit %s: %w", id, err)
	}

	applied, err := s.products.Query(`DELETE FROM products WHERE product_id = ? IF EXISTS`, toCQLUUID(id)).
		WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("suppression produit %s: %w", id, err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (s *ScyllaProductStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	return s.compareAndSetStock(ctx, id, func(current int) (int, error) {
		if current < qty {
			return current, ErrInsufficientStock
		}
		return current - qty, nil
	})
}

func (s *ScyllaProductStore) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	return s.compareAndSetStock(ctx, id, func(current int) (int, error) {
		return current + qty, nil
	})
}

// compareAndSetStock lit le stock puis tente UPDATE ... IF stock = <lu>.
// En cas de conflit la valeur renvoyée par Scylla sert de nouvelle base.
func (s *ScyllaProductStore) compareAndSetStock(ctx context.Context, id uuid.UUID, next func(current int) (int, error)) (int, error) {
	var current int
	err := s.products.Query(`SELECT stock FROM products WHERE product_id = ?`, toCQLUUID(id)).
		WithContext(ctx).Consistency(gocql.LocalQuorum).Scan(&current)
	if errors.Is(err, gocql.ErrNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lecture stock %s: %w", id, err)
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		target, err := next(current)
		if err != nil {
			return current, err
		}

		previous := map[string]interface{}{}
		applied, err := s.products.Query(`UPDATE products SET stock = ?, updated_at = ? WHERE product_id = ? IF stock = ?`,
			target, time.Now().UTC(), toCQLUUID(id), current,
		).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(previous)
		if err != nil {
			return 0, fmt.Errorf("mise à jour stock %s: %w", id, err)
		}
		if applied {
			return target, nil
		}

		stock, ok := previous["stock"].(int)
		if !ok {
			// Ligne supprimée entre la lecture et l'écriture.
			return 0, ErrNotFound
		}
		log.Debug().Str("product_id", id.String()).Int("attempt", attempt+1).Msg("🔁 Conflit LWT sur le stock, nouvelle tentative")
		current = stock
	}
	return 0, ErrStockContention
}

// ================= CATÉGORIES =================

type ScyllaCategoryStore struct {
	session *gocql.Session
}

func NewScyllaCategoryStore(session *gocql.Session) *ScyllaCategoryStore {
	return &ScyllaCategoryStore{session: session}
}

func (s *ScyllaCategoryStore) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := s.session.Query(`SELECT name FROM categories WHERE category_id = ?`, toCQLUUID(id)).WithContext(ctx).Scan(&c.Name)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture catégorie %s: %w", id, err)
	}
	c.ID = id
	return &c, nil
}

func (s *ScyllaCategoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	iter := s.session.Query(`SELECT category_id, name FROM categories`).WithContext(ctx).Iter()
	var (
		id  gocql.UUID
		out []models.Category
		c   models.Category
	)
	for iter.Scan(&id, &c.Name) {
		c.ID = uuid.UUID(id)
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("listing catégories: %w", err)
	}
	return out, nil
}

func (s *ScyllaCategoryStore) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	applied, err := s.session.Query(`INSERT INTO categories (category_id, name) VALUES (?, ?) IF NOT EXISTS`,
		toCQLUUID(c.ID), c.Name,
	).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("création catégorie: %w", err)
	}
	if !applied {
		return ErrDuplicate
	}
	return nil
}

// DeleteCategory supprime la catégorie. Les produits gardent un category_id
// orphelin, ignoré par le filtre.
func (s *ScyllaCategoryStore) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	applied, err := s.session.Query(`DELETE FROM categories WHERE category_id = ? IF EXISTS`, toCQLUUID(id)).
		WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("suppression catégorie %s: %w", id, err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}
