package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

type PostgresOrderStore struct {
	db *sqlx.DB
}

func NewPostgresOrderStore(db *sqlx.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// CreateOrder insère la commande et ses lignes dans une transaction.
func (s *PostgresOrderStore) CreateOrder(ctx context.Context, order *models.Order) (err error) {
	if len(order.Items) == 0 {
		return ErrInvalidInput
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("début transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error().Err(rbErr).Str("order_id", order.ID.String()).Msg("❌ Rollback commande échoué")
			}
		}
	}()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO orders (order_id, user_id, total_price, status, created_at, updated_at)
		VALUES (:order_id, :user_id, :total_price, :status, :created_at, :updated_at)`, order)
	if err != nil {
		return fmt.Errorf("insertion commande: %w", mapPostgresError(err))
	}

	for _, item := range order.Items {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO order_items (item_id, order_id, position, product_id, product_name, quantity, unit_price)
			VALUES (:item_id, :order_id, :position, :product_id, :product_name, :quantity, :unit_price)`, item)
		if err != nil {
			return fmt.Errorf("insertion ligne commande: %w", mapPostgresError(err))
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit commande: %w", err)
	}
	return nil
}

func (s *PostgresOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, `SELECT order_id, user_id, total_price, status, created_at, updated_at
		FROM orders WHERE order_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture commande %s: %w", id, err)
	}
	if err := s.db.SelectContext(ctx, &order.Items, `SELECT item_id, order_id, position, product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY position`, id); err != nil {
		return nil, fmt.Errorf("lecture lignes commande %s: %w", id, err)
	}
	return &order, nil
}

func (s *PostgresOrderStore) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var ids []uuid.UUID
	if err := s.db.SelectContext(ctx, &ids, `SELECT order_id FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("listing commandes utilisateur %s: %w", userID, err)
	}
	orders := make([]models.Order, 0, len(ids))
	for _, id := range ids {
		o, err := s.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, nil
}

func (s *PostgresOrderStore) TransitionOrderStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, models.OrderStatus, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE orders SET status = $1, updated_at = $2 WHERE order_id = $3 AND status = $4`,
		to, time.Now().UTC(), id, from)
	if err != nil {
		return false, "", fmt.Errorf("transition commande %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, "", fmt.Errorf("transition commande %s: %w", id, err)
	}
	if n == 1 {
		return true, to, nil
	}
	var current models.OrderStatus
	err = s.db.GetContext(ctx, &current, `SELECT status FROM orders WHERE order_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", ErrNotFound
	}
	if err != nil {
		return false, "", fmt.Errorf("lecture statut commande %s: %w", id, err)
	}
	return false, current, nil
}
