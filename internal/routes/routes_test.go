package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ecommerce_back_end/internal/cache"
	"ecommerce_back_end/internal/eventbus"
	"ecommerce_back_end/internal/gateway"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"
	"ecommerce_back_end/internal/services"
	"ecommerce_back_end/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"
)

const (
	testJWTSecret     = "jwt-test"
	testWebhookSecret = "whsec_test"
)

// testGateway vérifie les webhooks comme Stripe mais crée les sessions
// localement.
type testGateway struct {
	*gateway.StripeGateway
	sessions atomic.Int64
}

func (g *testGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (*gateway.Session, error) {
	id := fmt.Sprintf("cs_test_%d", g.sessions.Add(1))
	return &gateway.Session{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

type testAPI struct {
	router     *gin.Engine
	store      *repository.MemoryStore
	adminToken string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	inventory := services.NewInventory(store)
	flow := services.NewOrderFlow(store, store, inventory, eventbus.NoopPublisher{}, services.NoopNotifier{},
		services.OrderFlowConfig{ReleaseStockOnPaymentFailure: true})
	gw := &testGateway{StripeGateway: gateway.NewStripeGateway("sk_test_x", testWebhookSecret)}

	deps := Dependencies{
		Catalog: services.NewCatalog(store, store, nil, nil, nil),
		Carts:   services.NewCarts(cache.NewMemoryCartStore(), store, inventory, flow),
		Orders:  flow,
		Payments: services.NewPayments(gw, store, store, store, flow, cache.NewMemoryEventDeduper(), services.PaymentsConfig{
			Currency:          "eur",
			DefaultSuccessURL: "https://shop.example.com/ok",
			DefaultCancelURL:  "https://shop.example.com/ko",
		}),
		Users:     services.NewUsers(store, testJWTSecret, time.Hour),
		JWTSecret: testJWTSecret,
	}

	r := gin.New()
	RegisterRoutes(r, deps)

	admin := models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin}
	adminToken, err := utils.GenerateJWT(admin, testJWTSecret, time.Hour)
	require.NoError(t, err)

	return &testAPI{router: r, store: store, adminToken: adminToken}
}

func (a *testAPI) call(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (a *testAPI) customerToken(t *testing.T, email string) string {
	t.Helper()
	w := a.call(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": email, "password": "motdepasse", "name": "Client"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": email, "password": "motdepasse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	decode(t, w, &resp)
	return resp.Token
}

func (a *testAPI) createProduct(t *testing.T, name, price string, stock int) models.Product {
	t.Helper()
	w := a.call(t, http.MethodPost, "/api/products", a.adminToken, gin.H{"name": name, "price": price, "stock": stock})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var p models.Product
	decode(t, w, &p)
	return p
}

func signedEvent(t *testing.T, eventType, sessionID, paymentStatus string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(`{
		"id": "evt_%s_%s",
		"object": "event",
		"type": %q,
		"data": {"object": {"id": %q, "object": "checkout.session", "payment_status": %q}}
	}`, eventType, sessionID, eventType, sessionID, paymentStatus))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return payload, signed.Header
}

func (a *testAPI) webhook(t *testing.T, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/payments/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.call(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	api := newTestAPI(t)
	token := api.customerToken(t, "alice@example.com")
	p := api.createProduct(t, "Clavier", "49.90", 5)

	w := api.call(t, http.MethodPost, "/api/cart", token, gin.H{"product_id": p.ID, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = api.call(t, http.MethodPost, "/api/cart", token, gin.H{"product_id": p.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.call(t, http.MethodPost, "/api/orders/checkout", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, "149.7", order.TotalPrice.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)

	stored, err := api.store.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Stock)

	w = api.call(t, http.MethodPost, "/api/payments/stripe/create-session", token, gin.H{"order_id": order.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session services.CheckoutSession
	decode(t, w, &session)
	assert.Equal(t, "cs_test_1", session.SessionID)
	assert.NotEmpty(t, session.CheckoutURL)

	payload, signature := signedEvent(t, "checkout.session.completed", session.SessionID, "paid")
	w = api.webhook(t, payload, signature)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Relivraison du même événement.
	w = api.webhook(t, payload, signature)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.call(t, http.MethodGet, "/api/orders/"+order.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &order)
	assert.Equal(t, models.StatusConfirmed, order.Status)

	// Une commande confirmée ne s'annule plus.
	w = api.call(t, http.MethodPost, "/api/orders/"+order.ID.String()+"/cancel", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.call(t, http.MethodPost, "/api/orders/"+order.ID.String()+"/ship", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.call(t, http.MethodPost, "/api/orders/"+order.ID.String()+"/ship", api.adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &order)
	assert.Equal(t, models.StatusShipped, order.Status)

	w = api.call(t, http.MethodDelete, "/api/products/"+p.ID.String(), api.adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.call(t, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var orders []models.Order
	decode(t, w, &orders)
	assert.Len(t, orders, 1)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	api := newTestAPI(t)
	token := api.customerToken(t, "bob@example.com")
	p := api.createProduct(t, "Souris", "19.99", 1)

	w := api.call(t, http.MethodPost, "/api/orders/checkout", token, gin.H{
		"items": []gin.H{{"product_id": p.ID, "quantity": 2}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body struct {
		Error     string `json:"error"`
		Product   string `json:"product"`
		Available int    `json:"available"`
		Requested int    `json:"requested"`
	}
	decode(t, w, &body)
	assert.Equal(t, "Souris", body.Product)
	assert.Equal(t, 1, body.Available)
	assert.Equal(t, 2, body.Requested)

	w = api.call(t, http.MethodPost, "/api/orders/checkout", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "panier vide")
}

func TestWebhookRejections(t *testing.T) {
	api := newTestAPI(t)

	payload, _ := signedEvent(t, "checkout.session.completed", "cs_test_1", "paid")
	w := api.webhook(t, payload, "t=1,v1=deadbeef")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.webhook(t, payload, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Session inconnue : accusé de réception sans effet.
	payload, signature := signedEvent(t, "checkout.session.completed", "tx_999", "paid")
	w = api.webhook(t, payload, signature)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhookFailureCancelsOrder(t *testing.T) {
	api := newTestAPI(t)
	token := api.customerToken(t, "carol@example.com")
	p := api.createProduct(t, "Écran", "199.00", 4)

	w := api.call(t, http.MethodPost, "/api/orders/checkout", token, gin.H{
		"items": []gin.H{{"product_id": p.ID, "quantity": 4}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order models.Order
	decode(t, w, &order)

	w = api.call(t, http.MethodPost, "/api/payments/stripe/create-session", token, gin.H{"order_id": order.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session services.CheckoutSession
	decode(t, w, &session)

	payload, signature := signedEvent(t, "checkout.session.expired", session.SessionID, "unpaid")
	w = api.webhook(t, payload, signature)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.call(t, http.MethodGet, "/api/orders/"+order.ID.String(), token, nil)
	decode(t, w, &order)
	assert.Equal(t, models.StatusCancelled, order.Status)

	w = api.call(t, http.MethodGet, "/api/products/"+p.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var product models.Product
	decode(t, w, &product)
	assert.Equal(t, 4, product.Stock)
}

func TestCatalogEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.customerToken(t, "dave@example.com")

	w := api.call(t, http.MethodPost, "/api/products", token, gin.H{"name": "X", "price": "1.00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = api.call(t, http.MethodPost, "/api/products", "", gin.H{"name": "X", "price": "1.00"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.call(t, http.MethodPost, "/api/products/categories", api.adminToken, gin.H{"name": "Audio"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var category models.Category
	decode(t, w, &category)

	w = api.call(t, http.MethodPost, "/api/products", api.adminToken, gin.H{
		"name": "Casque", "price": "89.00", "stock": 3, "category_id": category.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	api.createProduct(t, "Câble", "9.00", 10)

	w = api.call(t, http.MethodGet, "/api/products?category="+category.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []models.Product
	decode(t, w, &products)
	require.Len(t, products, 1)
	assert.Equal(t, "Casque", products[0].Name)

	w = api.call(t, http.MethodGet, "/api/products?ordering=price", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &products)
	require.Len(t, products, 2)
	assert.Equal(t, "Câble", products[0].Name)

	w = api.call(t, http.MethodGet, "/api/products?min_price=50&max_price=10", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.call(t, http.MethodGet, "/api/products?ordering=name", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.call(t, http.MethodGet, "/api/products/pas-un-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.call(t, http.MethodGet, "/api/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.call(t, http.MethodGet, "/api/products/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var categories []models.Category
	decode(t, w, &categories)
	assert.Len(t, categories, 1)
}

func TestAuthEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token := api.customerToken(t, "erin@example.com")

	w := api.call(t, http.MethodPost, "/api/auth/register", "", gin.H{"email": "erin@example.com", "password": "motdepasse"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.call(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "erin@example.com", "password": "mauvais"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.call(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]interface{}
	decode(t, w, &me)
	assert.Equal(t, "erin@example.com", me["email"])
	assert.NotContains(t, me, "password")
}
