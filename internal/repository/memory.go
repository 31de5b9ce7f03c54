package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
)

// MemoryStore implémente tous les dépôts en mémoire (STORE_DRIVER=memory).
// Un seul verrou protège l'ensemble : chaque opération est atomique.
type MemoryStore struct {
	mu sync.RWMutex

	products           map[uuid.UUID]models.Product
	categories         map[uuid.UUID]models.Category
	orders             map[uuid.UUID]models.Order
	payments           map[uuid.UUID]models.PaymentTransaction
	paymentsByExternal map[string]uuid.UUID
	users              map[uuid.UUID]models.User
	usersByEmail       map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:           make(map[uuid.UUID]models.Product),
		categories:         make(map[uuid.UUID]models.Category),
		orders:             make(map[uuid.UUID]models.Order),
		payments:           make(map[uuid.UUID]models.PaymentTransaction),
		paymentsByExternal: make(map[string]uuid.UUID),
		users:              make(map[uuid.UUID]models.User),
		usersByEmail:       make(map[string]uuid.UUID),
	}
}

// Store expose le MemoryStore sous chacune des interfaces de dépôt.
func (s *MemoryStore) Store() *Store {
	return &Store{Products: s, Categories: s, Orders: s, Payments: s, Users: s}
}

// ================= PRODUITS =================

func (s *MemoryStore) GetProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) ListProducts(_ context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.mu.RLock()
	all := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		all = append(all, p)
	}
	s.mu.RUnlock()
	return ApplyProductFilter(all, filter), nil
}

func (s *MemoryStore) CreateProduct(_ context.Context, p *models.Product) error {
	if p.Stock < 0 || p.Price.IsNegative() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, exists := s.products[p.ID]; exists {
		return ErrDuplicate
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = *p
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p *models.Product) error {
	if p.Price.IsNegative() {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	current.Name = p.Name
	current.Description = p.Description
	current.Price = p.Price
	current.CategoryID = p.CategoryID
	current.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = current
	*p = current
	return nil
}

func (s *MemoryStore) SetProductImage(_ context.Context, id uuid.UUID, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	p.ImageURL = imageURL
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrNotFound
	}
	for _, o := range s.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return ErrProductInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (s *MemoryStore) DecrementStock(_ context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, ErrNotFound
	}
	if p.Stock < qty {
		return p.Stock, ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return p.Stock, nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, id uuid.UUID, qty int) (int, error) {
	if qty <= 0 {
		return 0, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return p.Stock, nil
}

// ================= CATÉGORIES =================

func (s *MemoryStore) GetCategory(_ context.Context, id uuid.UUID) (*models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) ListCategories(_ context.Context) ([]models.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Category) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *MemoryStore) CreateCategory(_ context.Context, c *models.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return ErrDuplicate
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.categories[c.ID] = *c
	return nil
}

func (s *MemoryStore) DeleteCategory(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return ErrNotFound
	}
	delete(s.categories, id)
	// Les produits de la catégorie deviennent sans catégorie.
	for pid, p := range s.products {
		if p.CategoryID != nil && *p.CategoryID == id {
			p.CategoryID = nil
			s.products[pid] = p
		}
	}
	return nil
}

// ================= COMMANDES =================

func (s *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return ErrDuplicate
	}
	positions := make(map[int]bool, len(order.Items))
	for _, item := range order.Items {
		if _, ok := s.products[item.ProductID]; !ok {
			return ErrNotFound
		}
		if positions[item.Position] {
			return ErrInvalidInput
		}
		positions[item.Position] = true
	}
	stored := cloneOrder(*order)
	// Même ordre de lecture que order_items côté Scylla et Postgres.
	slices.SortStableFunc(stored.Items, func(a, b models.OrderItem) int { return a.Position - b.Position })
	s.orders[order.ID] = stored
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = cloneOrder(o)
	return &o, nil
}

func (s *MemoryStore) ListOrdersByUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	slices.SortFunc(out, func(a, b models.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) TransitionOrderStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) (bool, models.OrderStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, "", ErrNotFound
	}
	if o.Status != from {
		return false, o.Status, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.orders[id] = o
	return true, to, nil
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// ================= PAIEMENTS =================

func (s *MemoryStore) CreateTransaction(_ context.Context, tx *models.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[tx.OrderID]; !ok {
		return ErrNotFound
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.ExternalID != nil {
		if _, taken := s.paymentsByExternal[*tx.ExternalID]; taken {
			return ErrDuplicate
		}
		s.paymentsByExternal[*tx.ExternalID] = tx.ID
	}
	s.payments[tx.ID] = cloneTransaction(*tx)
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id uuid.UUID) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	tx = cloneTransaction(tx)
	return &tx, nil
}

func (s *MemoryStore) GetTransactionByExternalID(ctx context.Context, externalID string) (*models.PaymentTransaction, error) {
	s.mu.RLock()
	id, ok := s.paymentsByExternal[externalID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetTransaction(ctx, id)
}

func (s *MemoryStore) ListTransactionsByOrder(_ context.Context, orderID uuid.UUID) ([]models.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PaymentTransaction, 0)
	for _, tx := range s.payments {
		if tx.OrderID == orderID {
			out = append(out, cloneTransaction(tx))
		}
	}
	slices.SortFunc(out, func(a, b models.PaymentTransaction) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AttachExternalID(_ context.Context, id uuid.UUID, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.payments[id]
	if !ok {
		return ErrNotFound
	}
	if owner, taken := s.paymentsByExternal[externalID]; taken && owner != id {
		return ErrDuplicate
	}
	ext := externalID
	tx.ExternalID = &ext
	tx.UpdatedAt = time.Now().UTC()
	s.payments[id] = tx
	s.paymentsByExternal[externalID] = id
	return nil
}

func (s *MemoryStore) TransitionPaymentStatus(_ context.Context, id uuid.UUID, from, to models.PaymentStatus) (bool, models.PaymentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.payments[id]
	if !ok {
		return false, "", ErrNotFound
	}
	if tx.Status != from {
		return false, tx.Status, nil
	}
	tx.Status = to
	tx.UpdatedAt = time.Now().UTC()
	s.payments[id] = tx
	return true, to, nil
}

func cloneTransaction(tx models.PaymentTransaction) models.PaymentTransaction {
	if tx.ExternalID != nil {
		ext := *tx.ExternalID
		tx.ExternalID = &ext
	}
	return tx
}

// ================= UTILISATEURS =================

func (s *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.usersByEmail[email]; taken {
		return ErrDuplicate
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = email
	s.users[u.ID] = *u
	s.usersByEmail[email] = u.ID
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}
