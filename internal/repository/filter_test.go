package repository

import (
	"testing"
	"time"

	"ecommerce_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestApplyProductFilter(t *testing.T) {
	electronics := uuid.New()
	books := uuid.New()
	now := time.Now()

	products := []models.Product{
		{ID: uuid.New(), Name: "Clavier mécanique", Price: decimal.NewFromInt(80), CategoryID: &electronics, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: uuid.New(), Name: "Souris", Description: "sans fil", Price: decimal.NewFromInt(25), CategoryID: &electronics, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: uuid.New(), Name: "Roman", Price: decimal.NewFromInt(12), CategoryID: &books, CreatedAt: now.Add(-1 * time.Hour)},
		{ID: uuid.New(), Name: "Carte cadeau", Price: decimal.NewFromInt(50), CreatedAt: now},
	}
	min20 := decimal.NewFromInt(20)
	max60 := decimal.NewFromInt(60)

	tests := []struct {
		name   string
		filter models.ProductFilter
		want   []string
	}{
		{"défaut : plus récent d'abord", models.ProductFilter{}, []string{"Carte cadeau", "Roman", "Souris", "Clavier mécanique"}},
		{"catégorie", models.ProductFilter{CategoryID: &electronics}, []string{"Souris", "Clavier mécanique"}},
		{"fourchette de prix", models.ProductFilter{MinPrice: &min20, MaxPrice: &max60, Ordering: "price"}, []string{"Souris", "Carte cadeau"}},
		{"recherche description insensible à la casse", models.ProductFilter{Search: "SANS FIL"}, []string{"Souris"}},
		{"tri prix décroissant", models.ProductFilter{Ordering: "-price"}, []string{"Clavier mécanique", "Carte cadeau", "Souris", "Roman"}},
		{"restriction par ids", models.ProductFilter{IDs: []uuid.UUID{products[2].ID}}, []string{"Roman"}},
		{"ids vides : aucun résultat", models.ProductFilter{IDs: []uuid.UUID{}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyProductFilter(products, tt.filter)
			names := make([]string, 0, len(got))
			for _, p := range got {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestValidOrdering(t *testing.T) {
	assert.True(t, ValidOrdering(""))
	assert.True(t, ValidOrdering("-price"))
	assert.False(t, ValidOrdering("name"))
}
