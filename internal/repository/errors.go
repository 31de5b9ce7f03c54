package repository

import "errors"

var (
	ErrNotFound          = errors.New("ressource introuvable")
	ErrInvalidInput      = errors.New("données invalides")
	ErrInsufficientStock = errors.New("stock insuffisant")
	ErrStockContention   = errors.New("trop de mises à jour concurrentes du stock")
	ErrProductInUse      = errors.New("produit référencé par des commandes")
	ErrDuplicate         = errors.New("ressource déjà existante")
)
