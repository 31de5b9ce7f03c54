package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ecommerce_back_end/internal/eventbus"
	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderFlow_CreateOrderRoundTrip(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	userID := uuid.New()
	a := f.product(t, "Clavier", "49.90", 10)
	b := f.product(t, "Souris", "19.99", 10)

	order, err := f.flow.CreateOrder(ctx, userID, []models.CartItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
		{ProductID: a.ID, Quantity: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "Clavier", order.Items[0].ProductName)
	assert.True(t, decimal.RequireFromString("169.69").Equal(order.TotalPrice), order.TotalPrice.String())
	assert.Equal(t, 7, f.stock(t, a.ID))
	assert.Equal(t, 9, f.stock(t, b.ID))

	stored, err := f.flow.GetOrder(ctx, userID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
	assert.True(t, order.TotalPrice.Equal(stored.TotalPrice))
	require.Len(t, stored.Items, 2)
	for i, item := range stored.Items {
		assert.Equal(t, i, item.Position)
		assert.Equal(t, order.Items[i].ProductID, item.ProductID)
		assert.Equal(t, order.Items[i].Quantity, item.Quantity)
		assert.True(t, order.Items[i].UnitPrice.Equal(item.UnitPrice))
	}
	assert.Equal(t, 1, f.publisher.count(eventbus.OrderCreated))
}

func TestOrderFlow_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "Écran", "199.00", 5)

	order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	p.Price = decimal.RequireFromString("249.00")
	require.NoError(t, f.store.UpdateProduct(ctx, p))

	stored, err := f.store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("199.00").Equal(stored.Items[0].UnitPrice))
}

func TestOrderFlow_StockOfFive(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "Carte graphique", "599.00", 5)

	_, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 5}})
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, p.ID))

	_, err = f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 1, stockErr.Requested)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestOrderFlow_CreateOrderAtomicOnSecondOfThree(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := f.product(t, "A", "1.00", 5)
	b := f.product(t, "B", "1.00", 1)
	c := f.product(t, "C", "1.00", 5)
	userID := uuid.New()

	_, err := f.flow.CreateOrder(ctx, userID, []models.CartItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
		{ProductID: c.ID, Quantity: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(t, a.ID))
	assert.Equal(t, 1, f.stock(t, b.ID))
	assert.Equal(t, 5, f.stock(t, c.ID))
	orders, err := f.flow.ListOrders(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderFlow_CreateOrderValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "1.00", 5)

	_, err := f.flow.CreateOrder(ctx, uuid.New(), nil)
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 0}})
	assert.True(t, errors.As(err, &vErr))

	_, err = f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: uuid.New(), Quantity: 1}})
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 5, f.stock(t, p.ID))
}

type failingOrderStore struct {
	repository.OrderStore
}

func (failingOrderStore) CreateOrder(context.Context, *models.Order) error {
	return errors.New("base indisponible")
}

func TestOrderFlow_PersistFailureReleasesStock(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	a := f.product(t, "A", "1.00", 5)
	b := f.product(t, "B", "1.00", 5)

	flow := NewOrderFlow(f.store, failingOrderStore{f.store}, f.inventory, f.publisher, f.notifier, OrderFlowConfig{})
	_, err := flow.CreateOrder(ctx, uuid.New(), []models.CartItem{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 5},
	})
	require.Error(t, err)
	assert.Equal(t, 5, f.stock(t, a.ID))
	assert.Equal(t, 5, f.stock(t, b.ID))
	assert.Equal(t, 0, f.publisher.count(eventbus.OrderCreated))
}

func TestOrderFlow_ConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "10.00", 5)
	order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 2}})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		confirmed, err := f.flow.ConfirmOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, confirmed.Status)
	}

	assert.Equal(t, 3, f.stock(t, p.ID))
	assert.Equal(t, 1, f.publisher.count(eventbus.OrderConfirmed))
	assert.Len(t, f.notifier.confirmed, 1)

	_, err = f.flow.ShipOrder(ctx, order.ID)
	require.NoError(t, err)
	again, err := f.flow.ConfirmOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, again.Status)
}

func TestOrderFlow_CancelReleasesStockOnce(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "10.00", 5)
	order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 4}})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, p.ID))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.flow.CancelOrder(ctx, order.ID); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, 5, f.stock(t, p.ID))
	assert.Equal(t, models.StatusCancelled, f.status(t, order.ID))
	assert.Equal(t, 1, f.publisher.count(eventbus.OrderCancelled))
}

func TestOrderFlow_InvalidTransitions(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "10.00", 5)

	shipped, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.flow.ConfirmOrder(ctx, shipped.ID)
	require.NoError(t, err)
	_, err = f.flow.ShipOrder(ctx, shipped.ID)
	require.NoError(t, err)

	_, err = f.flow.CancelOrder(ctx, shipped.ID)
	var trErr *InvalidTransitionError
	require.True(t, errors.As(err, &trErr))
	assert.Equal(t, models.StatusShipped, trErr.From)
	assert.Equal(t, models.StatusCancelled, trErr.To)
	assert.Equal(t, models.StatusShipped, f.status(t, shipped.ID))
	assert.Equal(t, 4, f.stock(t, p.ID))

	cancelled, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.flow.CancelOrder(ctx, cancelled.ID)
	require.NoError(t, err)

	_, err = f.flow.ConfirmOrder(ctx, cancelled.ID)
	assert.True(t, IsInvalidTransition(err))
	_, err = f.flow.ShipOrder(ctx, cancelled.ID)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, models.StatusCancelled, f.status(t, cancelled.ID))
}

func TestOrderFlow_TransitionFollowsStatusTable(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "10.00", 5)
	order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	_, _, err = f.flow.transition(ctx, order.ID, models.StatusPending, models.StatusShipped)
	assert.True(t, IsInvalidTransition(err))
	_, _, err = f.flow.transition(ctx, order.ID, models.StatusCancelled, models.StatusPending)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, models.StatusPending, f.status(t, order.ID))

	_, err = f.flow.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	_, err = f.flow.ConfirmOrder(ctx, order.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statut final CANCELLED")
}

func TestOrderFlow_FailPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("annule et restitue par défaut", func(t *testing.T) {
		f := newFixture(t, true)
		p := f.product(t, "A", "10.00", 5)
		order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 3}})
		require.NoError(t, err)

		require.NoError(t, f.flow.FailPayment(ctx, order.ID))
		assert.Equal(t, models.StatusCancelled, f.status(t, order.ID))
		assert.Equal(t, 5, f.stock(t, p.ID))

		// Rejoué : aucune double restitution.
		require.NoError(t, f.flow.FailPayment(ctx, order.ID))
		assert.Equal(t, 5, f.stock(t, p.ID))
	})

	t.Run("laisse la commande en attente si désactivé", func(t *testing.T) {
		f := newFixture(t, false)
		p := f.product(t, "A", "10.00", 5)
		order, err := f.flow.CreateOrder(ctx, uuid.New(), []models.CartItem{{ProductID: p.ID, Quantity: 3}})
		require.NoError(t, err)

		require.NoError(t, f.flow.FailPayment(ctx, order.ID))
		assert.Equal(t, models.StatusPending, f.status(t, order.ID))
		assert.Equal(t, 2, f.stock(t, p.ID))
	})
}

func TestOrderFlow_OwnershipAndCancelUserOrder(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	p := f.product(t, "A", "10.00", 5)
	owner := uuid.New()
	order, err := f.flow.CreateOrder(ctx, owner, []models.CartItem{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)

	_, err = f.flow.GetOrder(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = f.flow.CancelUserOrder(ctx, uuid.New(), order.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, models.StatusPending, f.status(t, order.ID))

	cancelled, err := f.flow.CancelUserOrder(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}
