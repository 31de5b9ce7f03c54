package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	wrapped := func(code string) error {
		return fmt.Errorf("exec: %w", &pq.Error{Code: pq.ErrorCode(code)})
	}

	assert.ErrorIs(t, mapPostgresError(wrapped(pgerrcode.UniqueViolation)), ErrDuplicate)
	assert.ErrorIs(t, mapPostgresError(wrapped(pgerrcode.ForeignKeyViolation)), ErrNotFound)
	assert.ErrorIs(t, mapPostgresError(wrapped(pgerrcode.CheckViolation)), ErrInvalidInput)

	other := errors.New("connexion perdue")
	assert.Equal(t, other, mapPostgresError(other))

	assert.True(t, isForeignKeyViolation(wrapped(pgerrcode.ForeignKeyViolation)))
	assert.False(t, isForeignKeyViolation(nil))
}
