package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ecommerce_back_end/internal/models"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ScyllaUserStore : keyspace utilisateurs. users_by_email garantit
// l'unicité de l'email via IF NOT EXISTS.
type ScyllaUserStore struct {
	session *gocql.Session
}

func NewScyllaUserStore(session *gocql.Session) *ScyllaUserStore {
	return &ScyllaUserStore{session: session}
}

func (s *ScyllaUserStore) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	applied, err := s.session.Query(`INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS`,
		u.Email, toCQLUUID(u.ID)).WithContext(ctx).MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("réservation email: %w", err)
	}
	if !applied {
		return ErrDuplicate
	}

	err = s.session.Query(`INSERT INTO users (user_id, email, name, password, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		toCQLUUID(u.ID), u.Email, u.Name, u.Password, u.Role, u.CreatedAt).WithContext(ctx).Exec()
	if err != nil {
		// Libère l'email pour permettre une nouvelle tentative.
		if _, delErr := s.session.Query(`DELETE FROM users_by_email WHERE email = ? IF EXISTS`, u.Email).WithContext(ctx).
			MapScanCAS(map[string]interface{}{}); delErr != nil {
			log.Error().Err(delErr).Str("email", u.Email).Msg("❌ Impossible de libérer l'email réservé")
		}
		return fmt.Errorf("création utilisateur: %w", err)
	}
	return nil
}

func (s *ScyllaUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := models.User{ID: id}
	err := s.session.Query(`SELECT email, name, password, role, created_at FROM users WHERE user_id = ?`, toCQLUUID(id)).
		WithContext(ctx).Scan(&u.Email, &u.Name, &u.Password, &u.Role, &u.CreatedAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture utilisateur %s: %w", id, err)
	}
	return &u, nil
}

func (s *ScyllaUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var id gocql.UUID
	err := s.session.Query(`SELECT user_id FROM users_by_email WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))).
		WithContext(ctx).Scan(&id)
	if errors.Is(err, gocql.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture email: %w", err)
	}
	return s.GetUserByID(ctx, uuid.UUID(id))
}
