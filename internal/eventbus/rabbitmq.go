package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

const publishTimeout = 5 * time.Second

// RabbitMQPublisher publie en JSON sur un exchange topic durable, avec
// confirmations éditeur. La connexion est rétablie au prochain envoi si
// elle a été perdue.
type RabbitMQPublisher struct {
	url      string
	exchange string

	mu            sync.Mutex
	connection    *amqp.Connection
	channel       *amqp.Channel
	notifyConfirm chan amqp.Confirmation
	notifyClose   chan *amqp.Error
}

func NewRabbitMQPublisher(url, exchange string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{url: url, exchange: exchange}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect doit être appelé verrou pris.
func (p *RabbitMQPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("connexion RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("ouverture canal RabbitMQ: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("mode confirmation RabbitMQ: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("déclaration exchange %s: %w", p.exchange, err)
	}

	p.connection = conn
	p.channel = ch
	p.notifyConfirm = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.notifyClose = conn.NotifyClose(make(chan *amqp.Error, 1))
	log.Info().Str("exchange", p.exchange).Msg("✅ RabbitMQ connecté")
	return nil
}

func (p *RabbitMQPublisher) ready() bool {
	if p.connection == nil || p.connection.IsClosed() {
		return false
	}
	select {
	case err := <-p.notifyClose:
		log.Warn().Err(err).Msg("⚠️ Connexion RabbitMQ perdue")
		return false
	default:
		return true
	}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sérialisation événement: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready() {
		if err := p.connect(); err != nil {
			return err
		}
	}

	err = p.channel.Publish(p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publication %s: %w", routingKey, err)
	}

	select {
	case confirm := <-p.notifyConfirm:
		if !confirm.Ack {
			return errors.New("message refusé par le broker")
		}
		log.Debug().Str("routing_key", routingKey).Uint64("tag", confirm.DeliveryTag).Msg("📤 Événement publié")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errors.New("délai de confirmation RabbitMQ dépassé")
	}
}

func (p *RabbitMQPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Error().Err(err).Msg("❌ Fermeture canal RabbitMQ")
		}
		p.channel = nil
	}
	if p.connection != nil && !p.connection.IsClosed() {
		if err := p.connection.Close(); err != nil {
			log.Error().Err(err).Msg("❌ Fermeture connexion RabbitMQ")
		}
	}
	p.connection = nil
}
