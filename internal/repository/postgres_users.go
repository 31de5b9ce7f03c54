package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PostgresUserStore struct {
	db *sqlx.DB
}

func NewPostgresUserStore(db *sqlx.DB) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

func (s *PostgresUserStore) CreateUser(ctx context.Context, u *models.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO users (user_id, email, name, password, role, created_at)
		VALUES (:user_id, :email, :name, :password, :role, :created_at)`, u)
	if err != nil {
		return fmt.Errorf("création utilisateur: %w", mapPostgresError(err))
	}
	return nil
}

func (s *PostgresUserStore) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT user_id, email, name, password, role, created_at FROM users WHERE `+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture utilisateur: %w", err)
	}
	return &u, nil
}

func (s *PostgresUserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getOne(ctx, "user_id = $1", id)
}

func (s *PostgresUserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}
