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

const transactionColumns = `transaction_id, order_id, gateway, amount, currency, status, external_id, created_at, updated_at`

// ScyllaPaymentStore : transactions de paiement (keyspace commandes).
// payment_transactions_by_external résout l'identifiant de session de la
// passerelle vers la transaction.
type ScyllaPaymentStore struct {
	session *gocql.Session
}

func NewScyllaPaymentStore(session *gocql.Session) *ScyllaPaymentStore {
	return &ScyllaPaymentStore{session: session}
}

func scanTransaction(scan func(dest ...interface{}) error) (*models.PaymentTransaction, error) {
	var (
		id, orderID gocql.UUID
		amount      = new(inf.Dec)
		status      string
		externalID  *string
		tx          models.PaymentTransaction
	)
	if err := scan(&id, &orderID, &tx.Gateway, amount, &tx.Currency, &status, &externalID, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return nil, err
	}
	tx.ID = uuid.UUID(id)
	tx.OrderID = uuid.UUID(orderID)
	tx.Amount = fromCQLDecimal(amount)
	tx.Status = models.PaymentStatus(status)
	tx.ExternalID = externalID
	return &tx, nil
}

func (s *ScyllaPaymentStore) CreateTransaction(ctx context.Context, tx *models.PaymentTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	batch := s.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO payment_transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toCQLUUID(tx.ID), toCQLUUID(tx.OrderID), tx.Gateway, toCQLDecimal(tx.Amount), tx.Currency,
		string(tx.Status), tx.ExternalID, tx.CreatedAt, tx.UpdatedAt)
	batch.Query(`INSERT INTO payment_transactions_by_order (order_id, transaction_id) VALUES (?, ?)`,
		toCQLUUID(tx.OrderID), toCQLUUID(tx.ID))
	if tx.ExternalID != nil {
		batch.Query(`INSERT INTO payment_transactions_by_external (external_id, transaction_id) VALUES (?, ?)`,
			*tx.ExternalID, toCQLUUID(tx.ID))
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("création transaction: %w", err)
	}
	return nil
}

func (s *ScyllaPaymentStore) GetTransaction(ctx context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	q := s.session.Query(`SELECT `+transactionColumns+` FROM payment_transactions WHERE transaction_id = ?`, toCQLUUID(id)).
		WithContext(ctx).Consistency(gocql.LocalQuorum)
	tx, err := scanTransaction(q.Scan)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture transaction %s: %w", id, err)
	}
	return tx, nil
}

func (s *ScyllaPaymentStore) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	var id gocql.UUID
	err := s.session.Query(`SELECT transaction_id FROM payment_transactions_by_external WHERE external_id = ?`, externalID).
		WithContext(ctx).Scan(&id)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture transaction externe %s: %w", externalID, err)
	}
	return s.GetTransaction(ctx, uuid.UUID(id))
}

func (s *ScyllaPaymentStore) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	iter := s.session.Query(`SELECT transaction_id FROM payment_transactions_by_order WHERE order_id = ?`, toCQLUUID(orderID)).
		WithContext(ctx).Iter()
	var (
		ids []uuid.UUID
		id  gocql.UUID
	)
	for iter.Scan(&id) {
		ids = append(ids, uuid.UUID(id))
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("listing transactions commande %s: %w", orderID, err)
	}

	out := make([]models.PaymentTransaction, 0, len(ids))
	for _, txID := range ids {
		tx, err := s.GetTransaction(ctx, txID)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

// AttachExternalID réserve d'abord l'identifiant externe (LWT sur l'index)
// puis le recopie sur la transaction.
func (s *ScyllaPaymentStore) AttachExternalID(ctx context.Context, id uuid.UUID, externalID string) error {
	previous := map[string]interface{}{}
	applied, err := s.session.Query(`INSERT INTO payment_transactions_by_external (external_id, transaction_id) VALUES (?, ?) IF NOT EXISTS`,
		externalID, toCQLUUID(id)).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(previous)
	if err != nil {
		return fmt.Errorf("index transaction externe %s: %w", externalID, err)
	}
	if !applied {
		if owner, ok := previous["transaction_id"].(gocql.UUID); !ok || uuid.UUID(owner) != id {
			return ErrDuplicate
		}
	}

	applied, err = s.session.Query(`UPDATE payment_transactions SET external_id = ?, updated_at = ? WHERE transaction_id = ? IF EXISTS`,
		externalID, time.Now().UTC(), toCQLUUID(id)).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("rattachement transaction %s: %w", id, err)
	}
	if !applied {
		return ErrNotFound
	}
	return nil
}

func (s *ScyllaPaymentStore) TransitionPaymentStatus(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus) (bool, models.PaymentStatus, error) {
	previous := map[string]interface{}{}
	applied, err := s.session.Query(`UPDATE payment_transactions SET status = ?, updated_at = ? WHERE transaction_id = ? IF status = ?`,
		string(to), time.Now().UTC(), toCQLUUID(id), string(from),
	).WithContext(ctx).SerialConsistency(gocql.LocalSerial).MapScanCAS(previous)
	if err != nil {
		return false, "", fmt.Errorf("transition transaction %s: %w", id, err)
	}
	if applied {
		return true, to, nil
	}
	current, ok := previous["status"].(string)
	if !ok {
		return false, "", ErrNotFound
	}
	return false, models.PaymentStatus(current), nil
}
