package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Les dépôts Scylla et Postgres ne sont pas exercés sans base ; on vérifie
// au moins qu'ils remplissent les contrats utilisés par les services.
func TestStoresSatisfyContracts(t *testing.T) {
	stores := map[string]*Store{
		"scylla": {
			Products:   NewScyllaProductStore(nil, nil),
			Categories: NewScyllaCategoryStore(nil),
			Orders:     NewScyllaOrderStore(nil),
			Payments:   NewScyllaPaymentStore(nil),
			Users:      NewScyllaUserStore(nil),
		},
		"postgres": {
			Products:   NewPostgresProductStore(nil),
			Categories: NewPostgresCategoryStore(nil),
			Orders:     NewPostgresOrderStore(nil),
			Payments:   NewPostgresPaymentStore(nil),
			Users:      NewPostgresUserStore(nil),
		},
		"memory": NewMemoryStore().Store(),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, s.Products)
			assert.NotNil(t, s.Categories)
			assert.NotNil(t, s.Orders)
			assert.NotNil(t, s.Payments)
			assert.NotNil(t, s.Users)
		})
	}
}
