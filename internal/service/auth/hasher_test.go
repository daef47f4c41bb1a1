package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_BcryptHasher(t *testing.T) {
	t.Parallel()

	hasher := BcryptHasher{}

	t.Run("hash and compare ok", func(t *testing.T) {
		hash, err := hasher.Hash("StrongEnoughPassword")
		require.NoError(t, err)
		require.NotEmpty(t, hash)

		err = hasher.Compare(hash, "StrongEnoughPassword")
		assert.NoError(t, err, "correct password should compare ok")
	})

	t.Run("compare fails on wrong password", func(t *testing.T) {
		hash, err := hasher.Hash("StrongEnoughPassword")
		require.NoError(t, err)

		err = hasher.Compare(hash, "WrongPassword")
		assert.Error(t, err, "wrong password should not compare ok")
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		first, err := hasher.Hash("StrongEnoughPassword")
		require.NoError(t, err)
		second, err := hasher.Hash("StrongEnoughPassword")
		require.NoError(t, err)

		assert.NotEqual(t, first, second, "fresh salt expected on every hash")
	})

	t.Run("long passwords survive bcrypt limit", func(t *testing.T) {
		// Plain bcrypt truncates input at 72 bytes, the sha256 prehash must not
		long := strings.Repeat("a", 100)
		hash, err := hasher.Hash(long)
		require.NoError(t, err)

		require.NoError(t, hasher.Compare(hash, long))
		require.Error(t, hasher.Compare(hash, long+"b"), "longer password must not collide")
	})

	t.Run("malformed hash compares as mismatch", func(t *testing.T) {
		err := hasher.Compare("not-a-bcrypt-hash", "whatever")
		assert.Error(t, err)
	})
}
