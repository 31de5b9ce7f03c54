package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Catalog : produits et catégories. La recherche plein texte passe par
// Elasticsearch quand il est configuré, sinon par le filtre du dépôt.
type Catalog struct {
	products   repository.ProductStore
	categories repository.CategoryStore
	cache      cache.ProductCache
	searcher   ProductSearcher
	images     ImageStorage
}

func NewCatalog(
	products repository.ProductStore,
	categories repository.CategoryStore,
	productCache cache.ProductCache,
	searcher ProductSearcher,
	images ImageStorage,
) *Catalog {
	if productCache == nil {
		productCache = cache.NoopProductCache{}
	}
	return &Catalog{products: products, categories: categories, cache: productCache, searcher: searcher, images: images}
}

func (c *Catalog) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	if !repository.ValidOrdering(filter.Ordering) {
		return nil, invalid("ordering invalide : %q", filter.Ordering)
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MinPrice.GreaterThan(*filter.MaxPrice) {
		return nil, invalid("min_price doit être inférieur à max_price")
	}
	if filter.Search != "" && c.searcher != nil {
		ids, err := c.searcher.Search(ctx, filter.Search)
		if err == nil {
			filter.IDs = ids
			filter.Search = ""
		} else {
			log.Warn().Err(err).Msg("⚠️ Recherche Elastic indisponible, filtre local")
		}
	}
	return c.products.ListProducts(ctx, filter)
}

func (c *Catalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := c.cache.GetProduct(ctx, id); ok {
		return p, nil
	}
	p, err := c.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetProduct(ctx, p)
	return p, nil
}

func (c *Catalog) validateProduct(ctx context.Context, p *models.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("le nom du produit est requis")
	}
	if p.Price.IsNegative() {
		return invalid("le prix ne peut pas être négatif")
	}
	if p.Stock < 0 {
		return invalid("le stock ne peut pas être négatif")
	}
	if p.CategoryID != nil {
		if _, err := c.categories.GetCategory(ctx, *p.CategoryID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return invalid("catégorie %s introuvable", *p.CategoryID)
			}
			return err
		}
	}
	return nil
}

func (c *Catalog) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := c.validateProduct(ctx, p); err != nil {
		return err
	}
	if err := c.products.CreateProduct(ctx, p); err != nil {
		return err
	}
	log.Info().Str("product_id", p.ID.String()).Str("name", p.Name).Msg("✅ Produit créé")
	c.index(ctx, p)
	return nil
}

// UpdateProduct modifie la fiche ; le stock ne change que via Restock et
// les réservations.
func (c *Catalog) UpdateProduct(ctx context.Context, p *models.Product) error {
	if err := c.validateProduct(ctx, p); err != nil {
		return err
	}
	if err := c.products.UpdateProduct(ctx, p); err != nil {
		return err
	}
	c.cache.InvalidateProduct(ctx, p.ID)
	c.index(ctx, p)
	return nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := c.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	c.cache.InvalidateProduct(ctx, id)
	if c.searcher != nil {
		if err := c.searcher.DeleteProduct(ctx, id); err != nil {
			log.Warn().Err(err).Str("product_id", id.String()).Msg("⚠️ Suppression de l'index échouée")
		}
	}
	log.Info().Str("product_id", id.String()).Msg("🗑️ Produit supprimé")
	return nil
}

// Restock ajoute du stock (réception de marchandise).
func (c *Catalog) Restock(ctx context.Context, id uuid.UUID, qty int) (*models.Product, error) {
	if qty <= 0 {
		return nil, invalid("la quantité doit être positive")
	}
	if _, err := c.products.IncrementStock(ctx, id, qty); err != nil {
		return nil, err
	}
	c.cache.InvalidateProduct(ctx, id)
	return c.products.GetProduct(ctx, id)
}

func (c *Catalog) UploadImage(ctx context.Context, id uuid.UUID, filename string, r io.Reader, size int64, contentType string) (*models.Product, error) {
	if c.images == nil {
		return nil, errors.New("stockage d'images non configuré")
	}
	if !allowedImageTypes[contentType] {
		return nil, invalid("type d'image non supporté : %s", contentType)
	}
	if _, err := c.products.GetProduct(ctx, id); err != nil {
		return nil, err
	}

	url, err := c.images.Upload(ctx, id, filename, r, size, contentType)
	if err != nil {
		return nil, err
	}
	if err := c.products.SetProductImage(ctx, id, url); err != nil {
		return nil, err
	}
	c.cache.InvalidateProduct(ctx, id)

	p, err := c.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	log.Info().Str("product_id", id.String()).Str("url", url).Msg("🖼️ Image produit mise à jour")
	return p, nil
}

func (c *Catalog) index(ctx context.Context, p *models.Product) {
	if c.searcher == nil {
		return
	}
	if err := c.searcher.IndexProduct(ctx, p); err != nil {
		log.Warn().Err(err).Str("product_id", p.ID.String()).Msg("⚠️ Indexation Elastic échouée")
	}
}

// ================= CATÉGORIES =================

func (c *Catalog) ListCategories(ctx context.Context) ([]models.Category, error) {
	return c.categories.ListCategories(ctx)
}

func (c *Catalog) CreateCategory(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("le nom de la catégorie est requis")
	}
	category := &models.Category{Name: name}
	if err := c.categories.CreateCategory(ctx, category); err != nil {
		return nil, fmt.Errorf("catégorie %q: %w", name, err)
	}
	return category, nil
}

func (c *Catalog) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	return c.categories.DeleteCategory(ctx, id)
}
