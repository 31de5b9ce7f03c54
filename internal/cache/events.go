package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const ProcessedEventTTL = 72 * time.Hour

// EventDeduper mémorise les événements de webhook déjà traités. C'est un
// raccourci : l'idempotence réelle repose sur les transitions conditionnelles.
type EventDeduper interface {
	AlreadyProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type RedisEventDeduper struct {
	client *redis.Client
}

func NewRedisEventDeduper(client *redis.Client) *RedisEventDeduper {
	return &RedisEventDeduper{client: client}
}

func eventKey(eventID string) string {
	return "webhook_event:" + eventID
}

func (d *RedisEventDeduper) AlreadyProcessed(ctx context.Context, eventID string) (bool, error) {
	err := d.client.Get(ctx, eventKey(eventID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *RedisEventDeduper) MarkProcessed(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, eventKey(eventID), "1", ProcessedEventTTL).Err()
}

type MemoryEventDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewMemoryEventDeduper() *MemoryEventDeduper {
	return &MemoryEventDeduper{seen: make(map[string]time.Time)}
}

func (d *MemoryEventDeduper) AlreadyProcessed(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.seen[eventID]
	if ok && time.Since(at) > ProcessedEventTTL {
		delete(d.seen, eventID)
		return false, nil
	}
	return ok, nil
}

func (d *MemoryEventDeduper) MarkProcessed(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[eventID] = time.Now()
	return nil
}
