package cache

import (
	"context"
	"encoding/json"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const ProductCacheTTL = 10 * time.Minute

// ProductCache met en cache la fiche produit pour les lectures publiques.
// Le stock mis en cache n'est qu'indicatif : les réservations relisent
// toujours la base.
type ProductCache interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, bool)
	SetProduct(ctx context.Context, p *models.Product)
	InvalidateProduct(ctx context.Context, id uuid.UUID)
}

type RedisProductCache struct {
	client *redis.Client
}

func NewRedisProductCache(client *redis.Client) *RedisProductCache {
	return &RedisProductCache{client: client}
}

func productKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func (c *RedisProductCache) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, bool) {
	data, err := c.client.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (c *RedisProductCache) SetProduct(ctx context.Context, p *models.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, productKey(p.ID), data, ProductCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("product_id", p.ID.String()).Msg("⚠️ Mise en cache produit échouée")
	}
}

func (c *RedisProductCache) InvalidateProduct(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, productKey(id)).Err(); err != nil {
		log.Warn().Err(err).Str("product_id", id.String()).Msg("⚠️ Invalidation cache produit échouée")
	}
}

// NoopProductCache désactive le cache (pas de Redis).
type NoopProductCache struct{}

func (NoopProductCache) GetProduct(context.Context, uuid.UUID) (*models.Product, bool) { return nil, false }
func (NoopProductCache) SetProduct(context.Context, *models.Product)                 {}
func (NoopProductCache) InvalidateProduct(context.Context, uuid.UUID)                {}
