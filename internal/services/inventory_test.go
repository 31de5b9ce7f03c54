package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_CheckStock(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, "Casque", "79.00", 2)

	require.NoError(t, f.inventory.CheckStock(p, 2))

	err := f.inventory.CheckStock(p, 3)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Casque", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)
	assert.ErrorIs(t, err, repository.ErrInsufficientStock)

	assert.Equal(t, 2, f.stock(t, p.ID))
}

func TestInventory_ConcurrentReservationsNeverOversell(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, "Console", "499.00", 5)

	var (
		wg       sync.WaitGroup
		reserved atomic.Int32
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Chaque acheteur a lu le même instantané (stock = 5).
			snapshot := *p
			if err := f.inventory.ReserveStock(context.Background(), &snapshot, 1); err == nil {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(5), reserved.Load())
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestInventory_ReserveStockStaleSnapshot(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, "Console", "499.00", 1)
	stale := *p

	require.NoError(t, f.inventory.ReserveStock(context.Background(), p, 1))

	err := f.inventory.ReserveStock(context.Background(), &stale, 1)
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 0, f.stock(t, p.ID))
}

func TestInventory_ReserveItemsRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, true)
	a := f.product(t, "A", "10.00", 10)
	b := f.product(t, "B", "20.00", 1)
	c := f.product(t, "C", "30.00", 10)

	err := f.inventory.ReserveItems(context.Background(), []ReservationLine{
		{Product: a, Quantity: 3},
		{Product: b, Quantity: 2},
		{Product: c, Quantity: 1},
	})

	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, 10, f.stock(t, a.ID))
	assert.Equal(t, 1, f.stock(t, b.ID))
	assert.Equal(t, 10, f.stock(t, c.ID))
}

func TestInventory_ValidateCartItems(t *testing.T) {
	f := newFixture(t, true)
	a := f.product(t, "Livre", "15.00", 4)
	b := f.product(t, "Stylo", "2.00", 0)

	require.NoError(t, f.inventory.ValidateCartItems(context.Background(), []models.CartItem{{ProductID: a.ID, Quantity: 4}}))

	err := f.inventory.ValidateCartItems(context.Background(), []models.CartItem{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: b.ID, Quantity: 1},
	})
	var stockErr *InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, "Stylo", stockErr.ProductName)
	assert.Equal(t, 4, f.stock(t, a.ID))
}

func TestInventory_ReleaseStock(t *testing.T) {
	f := newFixture(t, true)
	p := f.product(t, "Lampe", "25.00", 1)

	require.NoError(t, f.inventory.ReleaseStock(context.Background(), p.ID, 2))
	assert.Equal(t, 3, f.stock(t, p.ID))
	require.NoError(t, f.inventory.ReleaseStock(context.Background(), p.ID, 0))
	assert.Equal(t, 3, f.stock(t, p.ID))
}
