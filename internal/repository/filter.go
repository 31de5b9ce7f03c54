package repository

import (
	"slices"
	"strings"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
)

// ApplyProductFilter filtre et trie en mémoire. Utilisé par les backends
// sans requêtes ad hoc (ScyllaDB, memory).
func ApplyProductFilter(products []models.Product, f models.ProductFilter) []models.Product {
	var allowed map[uuid.UUID]bool
	if f.IDs != nil {
		allowed = make(map[uuid.UUID]bool, len(f.IDs))
		for _, id := range f.IDs {
			allowed[id] = true
		}
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	result := make([]models.Product, 0, len(products))
	for _, p := range products {
		if allowed != nil && !allowed[p.ID] {
			continue
		}
		if f.CategoryID != nil && (p.CategoryID == nil || *p.CategoryID != *f.CategoryID) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		result = append(result, p)
	}

	slices.SortStableFunc(result, productComparator(f.Ordering))
	return result
}

func productComparator(ordering string) func(a, b models.Product) int {
	switch ordering {
	case "price":
		return func(a, b models.Product) int { return a.Price.Cmp(b.Price) }
	case "-price":
		return func(a, b models.Product) int { return b.Price.Cmp(a.Price) }
	case "created_at":
		return func(a, b models.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		return func(a, b models.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	}
}

// ValidOrdering indique si la valeur du paramètre ordering est supportée.
func ValidOrdering(ordering string) bool {
	switch ordering {
	case "", "price", "-price", "created_at", "-created_at":
		return true
	}
	return false
}
