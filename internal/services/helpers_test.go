package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/gateway"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == routingKey {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []uuid.UUID
}

func (n *recordingNotifier) OrderConfirmed(_ context.Context, order *models.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, order.ID)
}

// fakeGateway : les webhooks sont des JSON {"id","kind","external_id"} et
// seule la signature "valid" est acceptée.
type fakeGateway struct {
	mu         sync.Mutex
	failCreate error
	requests   []gateway.SessionRequest
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate != nil {
		return nil, g.failCreate
	}
	g.requests = append(g.requests, req)
	id := "cs_" + uuid.NewString()
	return &gateway.Session{ID: id, URL: "https://pay.example.com/" + id}, nil
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*gateway.Event, error) {
	if signature != "valid" {
		return nil, &gateway.SignatureVerificationError{Err: errTestSignature}
	}
	var raw struct {
		ID         string `json:"id"`
		Kind       string `json:"kind"`
		ExternalID string `json:"external_id"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, gateway.ErrMalformedPayload
	}
	return &gateway.Event{ID: raw.ID, Type: "test." + raw.Kind, Kind: gateway.EventKind(raw.Kind), ExternalID: raw.ExternalID}, nil
}

var errTestSignature = &ValidationError{Message: "signature de test invalide"}

func webhookPayload(eventID string, kind gateway.EventKind, externalID string) []byte {
	data, _ := json.Marshal(map[string]string{"id": eventID, "kind": string(kind), "external_id": externalID})
	return data
}

type fixture struct {
	store     *repository.MemoryStore
	inventory *Inventory
	flow      *OrderFlow
	publisher *recordingPublisher
	notifier  *recordingNotifier
	gateway   *fakeGateway
	payments  *Payments
	carts     *Carts
	cartStore *cache.MemoryCartStore
}

func newFixture(t *testing.T, releaseOnFailure bool) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{
		store:     store,
		inventory: NewInventory(store),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
		gateway:   &fakeGateway{},
		cartStore: cache.NewMemoryCartStore(),
	}
	f.flow = NewOrderFlow(store, store, f.inventory, f.publisher, f.notifier,
		OrderFlowConfig{ReleaseStockOnPaymentFailure: releaseOnFailure})
	f.payments = NewPayments(f.gateway, store, store, store, f.flow, cache.NewMemoryEventDeduper(), PaymentsConfig{
		Currency:          "eur",
		DefaultSuccessURL: "https://shop.example.com/success",
		DefaultCancelURL:  "https://shop.example.com/cancel",
	})
	f.carts = NewCarts(f.cartStore, store, f.inventory, f.flow)
	return f
}

func (f *fixture) product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, f.store.CreateProduct(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) status(t *testing.T, orderID uuid.UUID) models.OrderStatus {
	t.Helper()
	o, err := f.store.GetOrder(context.Background(), orderID)
	require.NoError(t, err)
	return o.Status
}
