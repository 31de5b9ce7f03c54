package repository

import (
	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/inf.v0"
)

// Nombre maximal de tentatives pour une mise à jour conditionnelle (LWT)
// avant d'abandonner avec ErrStockContention.
const maxCASAttempts = 10

// toCQLDecimal convertit un montant vers le type decimal natif de gocql.
func toCQLDecimal(d decimal.Decimal) *inf.Dec {
	return inf.NewDecBig(d.Coefficient(), inf.Scale(-d.Exponent()))
}

func fromCQLDecimal(d *inf.Dec) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(d.UnscaledBig(), -int32(d.Scale()))
}

func toCQLUUID(id uuid.UUID) gocql.UUID {
	return gocql.UUID(id)
}

func fromCQLUUIDPtr(id *gocql.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	u := uuid.UUID(*id)
	return &u
}

func toCQLUUIDPtr(id *uuid.UUID) *gocql.UUID {
	if id == nil {
		return nil
	}
	g := gocql.UUID(*id)
	return &g
}
