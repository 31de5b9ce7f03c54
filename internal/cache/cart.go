package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const CartTTL = 30 * 24 * time.Hour

// CartStore conserve le panier d'un utilisateur : produit -> quantité.
// Écriture : dernier écrivain gagnant.
type CartStore interface {
	GetCart(ctx context.Context, userID uuid.UUID) (models.Cart, error)
	SetCart(ctx context.Context, userID uuid.UUID, cart models.Cart) error
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

func cartKey(userID uuid.UUID) string {
	return "cart:" + userID.String()
}

// RedisCartStore stocke le panier en JSON sous "cart:<user_id>" (30 jours).
type RedisCartStore struct {
	client *redis.Client
}

func NewRedisCartStore(client *redis.Client) *RedisCartStore {
	return &RedisCartStore{client: client}
}

func (s *RedisCartStore) GetCart(ctx context.Context, userID uuid.UUID) (models.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return models.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture panier: %w", err)
	}

	var raw map[string]int
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("panier corrompu: %w", err)
	}
	cart := make(models.Cart, len(raw))
	for id, qty := range raw {
		productID, err := uuid.Parse(id)
		if err != nil || qty <= 0 {
			continue
		}
		cart[productID] = qty
	}
	return cart, nil
}

func (s *RedisCartStore) SetCart(ctx context.Context, userID uuid.UUID, cart models.Cart) error {
	if len(cart) == 0 {
		return s.ClearCart(ctx, userID)
	}
	raw := make(map[string]int, len(cart))
	for id, qty := range cart {
		raw[id.String()] = qty
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cartKey(userID), data, CartTTL).Err()
}

func (s *RedisCartStore) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, cartKey(userID)).Err()
}

// MemoryCartStore : sans Redis (développement, tests).
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[uuid.UUID]models.Cart
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[uuid.UUID]models.Cart)}
}

func (s *MemoryCartStore) GetCart(_ context.Context, userID uuid.UUID) (models.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cart := make(models.Cart, len(s.carts[userID]))
	for id, qty := range s.carts[userID] {
		cart[id] = qty
	}
	return cart, nil
}

func (s *MemoryCartStore) SetCart(_ context.Context, userID uuid.UUID, cart models.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cart) == 0 {
		delete(s.carts, userID)
		return nil
	}
	stored := make(models.Cart, len(cart))
	for id, qty := range cart {
		stored[id] = qty
	}
	s.carts[userID] = stored
	return nil
}

func (s *MemoryCartStore) ClearCart(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
