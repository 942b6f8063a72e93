package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JoeShih716/go-bank-ledger/internal/app/core/domain"
)

func TestBcryptPins(t *testing.T) {
	pins := NewBcryptPins(bcrypt.MinCost)

	hash, err := pins.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, "1234", hash)

	assert.NoError(t, pins.Verify(hash, "1234"))
	assert.ErrorIs(t, pins.Verify(hash, "4321"), domain.ErrInvalidPin)
	assert.ErrorIs(t, pins.Verify(hash, ""), domain.ErrInvalidPin)
	assert.ErrorIs(t, pins.Verify("", "1234"), domain.ErrInvalidPin)
	assert.Error(t, pins.Verify("not-a-hash", "1234"))
}

func TestNewBcryptPins_CostOutOfRange(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPins(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptPins(99).cost)
	assert.Equal(t, bcrypt.MinCost, NewBcryptPins(bcrypt.MinCost).cost)
}
