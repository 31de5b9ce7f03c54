package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"gopkg.in/inf.v0"
)

// ScyllaOrderStore : commandes dans le keyspace commandes.
//
// Tables : orders, order_items (partition = order_id, triées par position), orders_by_user
// (listing client) et order_items_by_product (protection à la suppression).
type ScyllaOrderStore struct {
	session *gocql.Session
}

func NewScyllaOrderStore(session *gocql.Session) *ScyllaOrderStore {
	return &ScyllaOrderStore{session: session}
}

// CreateOrder écrit la commande, ses lignes et les index dans un batch
// journalisé : tout ou rien.
func (s *ScyllaOrderStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return ErrInvalidInput
	}
	orderID := toCQLUUID(order.ID)
	userID := toCQLUUID(order.UserID)

	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO orders (order_id, user_id, total_price, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		orderID, userID, toCQLDecimal(order.TotalPrice), string(order.Status), order.CreatedAt, order.UpdatedAt)
	batch.Query(`INSERT INTO orders_by_user (user_id, created_at, order_id) VALUES (?, ?, ?)`,
		userID, order.CreatedAt, orderID)

	for _, item := range order.Items {
		batch.Query(`INSERT INTO order_items (order_id, position, item_id, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			orderID, item.Position, toCQLUUID(item.ID), toCQLUUID(item.ProductID), item.ProductName, item.Quantity, toCQLDecimal(item.UnitPrice))
		batch.Query(`INSERT INTO order_items_by_product (product_id, order_id) VALUES (?, ?)`,
			toCQLUUID(item.ProductID), orderID)
	}

	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("création commande %s: %w", order.ID, err)
	}
	return nil
}

func (s *ScyllaOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var (
		userID gocql.UUID
		total  = new(inf.Dec)
		status string
		order  = models.Order{ID: id}
	)
	err := s.session.Query(`SELECT user_id, total_price, status, created_at, updated_at FROM orders WHERE order_id = ?`,
		toCQLUUID(id)).WithContext(ctx).Consistency(gocql.LocalQuorum).
		Scan(&userID, total, &status, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture commande %s: %w", id, err)
	}
	order.UserID = uuid.UUID(userID)
	order.TotalPrice = fromCQLDecimal(total)
	order.Status = models.OrderStatus(status)

	items, err := s.getItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return &order, nil
}

func (s *ScyllaOrderStore) getItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	iter := s.session.Query(`SELECT position, item_id, product_id, product_name, quantity, unit_price FROM order_items WHERE order_id = ?`,
		toCQLUUID(orderID)).WithContext(ctx).Iter()

	var (
		items     []models.OrderItem
		itemID    gocql.UUID
		productID gocql.UUID
	)
	for {
		item := models.OrderItem{OrderID: orderID}
		unitPrice := new(inf.Dec)
		if !iter.Scan(&item.Position, &itemID, &productID, &item.ProductName, &item.Quantity, unitPrice) {
			break
		}
		item.ID = uuid.UUID(itemID)
		item.ProductID = uuid.UUID(productID)
		item.UnitPrice = fromCQLDecimal(unitPrice)
		items = append(items, item)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("lecture lignes commande %s: %w", orderID, err)
	}
	return items, nil
}

// ListOrdersByUser renvoie les commandes du plus récent au plus ancien
// (ordre de clustering de orders_by_user).
func (s *ScyllaOrderStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	iter := s.session.Query(`SELECT order_id FROM orders_by_user WHERE user_id = ?`, toCQLUUID(userID)).
		WithContext(ctx).Iter()

	var (
		ids []uuid.UUID
		id  gocql.UUID
	)
	for iter.Scan(&id) {
		ids = append(ids, uuid.UUID(id))
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("listing commandes utilisateur %s: %w", userID, err)
	}

	orders := make([]models.Order, 0, len(ids))
	for _, orderID := range ids {
		o, err := s.GetOrder(ctx, orderID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (s *ScyllaOrderStore) TransitionOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, models.OrderStatus, error) {
	previous := map[string]interface{}{}
	applied, err := s.session.Query(`UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ? IF status = ?`,
		string(to), time.Now().UTC(), toCQLUUID(id), string(from),
	).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(previous)
	if err != nil {
		return false, "", fmt.Errorf("transition commande %s: %w", id, err)
	}
	if applied {
		return true, to, nil
	}
	current, ok := previous["status"].(string)
	if !ok {
		return false, "", ErrNotFound
	}
	return false, models.OrderStatus(current), nil
}
