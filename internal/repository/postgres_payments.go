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
)

type PostgresPaymentStore struct {
	db *sqlx.DB
}

func NewPostgresPaymentStore(db *sqlx.DB) *PostgresPaymentStore {
	return &PostgresPaymentStore{db: db}
}

func (s *PostgresPaymentStore) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO payment_transactions (`+transactionColumns+`)
		VALUES (:transaction_id, :order_id, :gateway, :amount, :currency, :status, :external_id, :created_at, :updated_at)`, tx)
	if err != nil {
		return fmt.Errorf("création transaction: %w", mapPostgresError(err))
	}
	return nil
}

func (s *PostgresPaymentStore) getOne(ctx context.Context, where string, arg interface{}) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	err := s.db.GetContext(ctx, &tx, `SELECT `+transactionColumns+` FROM payment_transactions WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture transaction: %w", err)
	}
	return &tx, nil
}

func (s *PostgresPaymentStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	return s.getOne(ctx, "transaction_id = $1", id)
}

func (s *PostgresPaymentStore) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	return s.getOne(ctx, "external_id = $1", externalID)
}

func (s *PostgresPaymentStore) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	txs := []models.PaymentTransaction{}
	err := s.db.SelectContext(ctx, &txs, `SELECT `+transactionColumns+` FROM payment_transactions
		WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions commande %s: %w", orderID, err)
	}
	return txs, nil
}

func (s *PostgresPaymentStore) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE payment_transactions SET external_id = $1, updated_at = $2 WHERE transaction_id = $3`,
		externalID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rattachement transaction %s: %w", id, mapPostgresError(err))
	}
	return expectOneRow(res)
}

func (s *PostgresPaymentStore) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus) (bool, models.PaymentStatus, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE payment_transactions SET status = $1, updated_at = $2
		WHERE transaction_id = $3 AND status = $4`, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, "", fmt.Errorf("transition transaction %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, to, nil
	}
	current, err := s.GetTransaction(ctx, id)
	if err != nil {
		return false, "", err
	}
	return false, current.Status, nil
}
