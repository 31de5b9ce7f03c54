package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"ecommerce_back_end/internal/models"
	"ecommerce_back_end/internal/repository"
	"ecommerce_back_end/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const minPasswordLength = 8

type Users struct {
	store     repository.UserStore
	jwtSecret string
	jwtTTL    time.Duration
}

func NewUsers(store repository.UserStore, jwtSecret string, jwtTTL time.Duration) *Users {
	return &Users{store: store, jwtSecret: jwtSecret, jwtTTL: jwtTTL}
}

func (u *Users) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email invalide")
	}
	if len(password) < minPasswordLength {
		return nil, invalid("le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Password:  hash,
		Role:      models.RoleCustomer,
		CreatedAt: time.Now().UTC(),
	}
	if err := u.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("user_id", user.ID.String()).Msg("✅ Utilisateur inscrit")
	return user, nil
}

// Login renvoie un JWT signé pour des identifiants valides.
func (u *Users) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	user, err := u.store.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	ok, err := utils.VerifyPassword(password, user.Password)
	if err != nil || !ok {
		return "", nil, ErrInvalidCredentials
	}

	token, err := utils.GenerateJWT(*user, u.jwtSecret, u.jwtTTL)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (u *Users) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return u.store.GetUserByID(ctx, id)
}
