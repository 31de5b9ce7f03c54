// Package eventbus publie les événements de domaine des commandes.
package eventbus

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Routing keys des événements de commande.
const (
	OrderCreated   = "order.created"
	OrderConfirmed = "order.confirmed"
	OrderCancelled = "order.cancelled"
	OrderShipped   = "order.shipped"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
	Close()
}

// NoopPublisher est utilisé quand RABBITMQ_URL n'est pas configuré.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	log.Debug().Str("routing_key", routingKey).Msg("📭 Bus désactivé, événement non publié")
	return nil
}

func (NoopPublisher) Close() {}
