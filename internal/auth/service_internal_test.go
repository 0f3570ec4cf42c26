package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDummyHash(t *testing.T) {
	first := dummyHash()
	cost, err := bcrypt.Cost(first)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.Equal(t, first, dummyHash(), "computed once")
	assert.Error(t, bcrypt.CompareHashAndPassword(first, []byte("correctpass")))
}
