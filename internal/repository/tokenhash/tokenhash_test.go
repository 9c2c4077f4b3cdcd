package tokenhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_TokenHash(t *testing.T) {
	t.Parallel()

	t.Run("salts are random", func(t *testing.T) {
		s1, err := NewSalt()
		require.NoError(t, err)
		s2, err := NewSalt()
		require.NoError(t, err)

		require.Len(t, s1, SaltLen)
		require.NotEqual(t, s1, s2, "two salts should never match")
	})

	t.Run("match with same salt", func(t *testing.T) {
		salt, err := NewSalt()
		require.NoError(t, err)

		hash := Sum(salt, "bearer-value")

		assert.True(t, Match(salt, hash, "bearer-value"))
		assert.False(t, Match(salt, hash, "other-bearer-value"))
	})

	t.Run("no match with different salt", func(t *testing.T) {
		salt1, err := NewSalt()
		require.NoError(t, err)
		salt2, err := NewSalt()
		require.NoError(t, err)

		hash := Sum(salt1, "bearer-value")

		assert.False(t, Match(salt2, hash, "bearer-value"), "hash must be bound to its salt")
	})

	t.Run("hash does not contain bearer", func(t *testing.T) {
		salt, err := NewSalt()
		require.NoError(t, err)

		hash := Sum(salt, "bearer-value")
		assert.NotContains(t, string(hash), "bearer-value")
	})
}
