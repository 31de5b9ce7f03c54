package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresProductStore struct {
	db *sqlx.DB
}

func NewPostgresProductStore(db *sqlx.DB) *PostgresProductStore {
	return &PostgresProductStore{db: db}
}

func (s *PostgresProductStore) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	err := s.db.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE product_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture produit %s: %w", id, err)
	}
	return &p, nil
}

var postgresOrderings = map[string]string{
	"price":       "price ASC, created_at DESC",
	"-price":      "price DESC, created_at DESC",
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"":            "created_at DESC",
}

func (s *PostgresProductStore) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*f.CategoryID))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+arg(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+arg(*f.MaxPrice))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		p := arg("%" + search + "%")
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if f.IDs != nil {
		ids := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = id.String()
		}
		conds = append(conds, "product_id = ANY("+arg(pq.Array(ids))+"::uuid[])")
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	order, ok := postgresOrderings[f.Ordering]
	if !ok {
		order = postgresOrderings[""]
	}
	query += " ORDER BY " + order

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("listing produits: %w", err)
	}
	return products, nil
}

func (s *PostgresProductStore) CreateProduct(ctx context.Context, p *models.Product) error {
	if p.Stock < 0 || p.Price.IsNegative() {
		return ErrInvalidInput
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := s.db.NamedExecContext(ctx, `INSERT INTO products (`+productColumns+`)
		VALUES (:product_id, :name, :description, :price, :stock, :category_id, :image_url, :created_at, :updated_at)`, p)
	if err != nil {
		return fmt.Errorf("création produit: %w", mapPostgresError(err))
	}
	return nil
}

func (s *PostgresProductStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	if p.Price.IsNegative() {
		return ErrInvalidInput
	}
	var updated models.Product
	err := s.db.GetContext(ctx, &updated, `UPDATE products
		SET name = $1, description = $2, price = $3, category_id = $4, updated_at = $5
		WHERE product_id = $6
		RETURNING `+productColumns,
		p.Name, p.Description, p.Price, p.CategoryID, time.Now().UTC(), p.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("mise à jour produit %s: %w", p.ID, mapPostgresError(err))
	}
	*p = updated
	return nil
}

func (s *PostgresProductStore) SetProductImage(ctx context.Context, id uuid.UUID, imageURL string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE products SET image_url = $1, updated_at = $2 WHERE product_id = $3`,
		imageURL, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mise à jour image %s: %w", id, err)
	}
	return expectOneRow(res)
}

// DeleteProduct s'appuie sur la contrainte ON DELETE RESTRICT de order_items.
func (s *PostgresProductStore) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE product_id = $1`, id)
	if isForeignKeyViolation(err) {
		return ErrProductInUse
	}
	if err != nil {
		return fmt.Errorf("suppression produit %s: %w", id, mapPostgresError(err))
	}
	return expectOneRow(res)
}

// DecrementStock : une seule requête conditionnelle, aucune lecture préalable.
func (s *PostgresProductStore) DecrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	var stock int
	err := s.db.QueryRowxContext(ctx, `UPDATE products SET stock = stock - $1, updated_at = $2
		WHERE product_id = $3 AND stock >= $1
		RETURNING stock`, qty, time.Now().UTC(), id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		current, getErr := s.GetProduct(ctx, id)
		if getErr != nil {
			return 0, getErr
		}
		return current.Stock, ErrInsufficientStock
	}
	if err != nil {
		return 0, fmt.Errorf("décrément stock %s: %w", id, err)
	}
	return stock, nil
}

func (s *PostgresProductStore) IncrementStock(ctx context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	var stock int
	err := s.db.QueryRowxContext(ctx, `UPDATE products SET stock = stock + $1, updated_at = $2
		WHERE product_id = $3
		RETURNING stock`, qty, time.Now().UTC(), id).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("incrément stock %s: %w", id, err)
	}
	return stock, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ================= CATÉGORIES =================

type PostgresCategoryStore struct {
	db *sqlx.DB
}

func NewPostgresCategoryStore(db *sqlx.DB) *PostgresCategoryStore {
	return &PostgresCategoryStore{db: db}
}

func (s *PostgresCategoryStore) GetCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var c models.Category
	err := s.db.GetContext(ctx, &c, `SELECT category_id, name FROM categories WHERE category_id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lecture catégorie %s: %w", id, err)
	}
	return &c, nil
}

func (s *PostgresCategoryStore) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	if err := s.db.SelectContext(ctx, &categories, `SELECT category_id, name FROM categories ORDER BY name`); err != nil {
		return nil, fmt.Errorf("listing catégories: %w", err)
	}
	return categories, nil
}

func (s *PostgresCategoryStore) CreateCategory(ctx context.Context, c *models.Category) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO categories (category_id, name) VALUES ($1, $2)`, c.ID, c.Name)
	if err != nil {
		return fmt.Errorf("création catégorie: %w", mapPostgresError(err))
	}
	return nil
}

// DeleteCategory : products.category_id passe à NULL (ON DELETE SET NULL).
func (s *PostgresCategoryStore) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE category_id = $1`, id)
	if err != nil {
		return fmt.Errorf("suppression catégorie %s: %w", id, err)
	}
	return expectOneRow(res)
}
