package tokencodec

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
)

func Test_Codec(t *testing.T) {
	t.Parallel()

	identity := models.Identity{UserID: uuid.New(), IsManager: true}

	newCodec := func(t *testing.T) *Codec {
		c, err := New("test-secret-key", "")
		require.NoError(t, err)
		return c
	}

	t.Run("new", func(t *testing.T) {
		t.Run("defaults", func(t *testing.T) {
			c, err := New("secret", "")
			require.NoError(t, err)
			require.Equal(t, "HS256", c.alg.Alg(), "default signing method should be set")
		})

		t.Run("empty secret", func(t *testing.T) {
			_, err := New("", "")
			require.Error(t, err)
		})

		t.Run("unknown method", func(t *testing.T) {
			_, err := New("secret", "HS42")
			require.Error(t, err)
		})
	})

	t.Run("round trip", func(t *testing.T) {
		c := newCodec(t)
		now := time.Now().Truncate(time.Second)

		token, err := c.Issue(identity, KindAccess, now, now.Add(15*time.Minute))
		require.NoError(t, err)

		claims, err := c.Verify(token, KindAccess)
		require.NoError(t, err)

		assert.Equal(t, identity.UserID, claims.UserID)
		assert.True(t, claims.IsManager)
		assert.Equal(t, KindAccess, claims.Kind)
		assert.NotEmpty(t, claims.ID, "token has to has jti")
		assert.WithinDuration(t, now.Add(15*time.Minute), claims.ExpiresAt.Time, time.Second)
	})

	t.Run("jti differs between reissues", func(t *testing.T) {
		c := newCodec(t)
		now := time.Now().Truncate(time.Second)

		t1, err := c.Issue(identity, KindRefresh, now, now.Add(time.Hour))
		require.NoError(t, err)
		t2, err := c.Issue(identity, KindRefresh, now, now.Add(time.Hour))
		require.NoError(t, err)

		require.NotEqual(t, t1, t2, "identical claim sets must still produce distinct bearer values")
	})

	t.Run("verify failures are indistinguishable", func(t *testing.T) {
		c := newCodec(t)
		now := time.Now().Truncate(time.Second)

		t.Run("expired", func(t *testing.T) {
			token, err := c.Issue(identity, KindAccess, now.Add(-time.Hour), now.Add(-time.Minute))
			require.NoError(t, err)

			_, err = c.Verify(token, KindAccess)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("wrong kind", func(t *testing.T) {
			token, err := c.Issue(identity, KindRefresh, now, now.Add(time.Hour))
			require.NoError(t, err)

			_, err = c.Verify(token, KindAccess)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("foreign signature", func(t *testing.T) {
			foreign, err := New("other-secret-key", "")
			require.NoError(t, err)

			token, err := foreign.Issue(identity, KindAccess, now, now.Add(time.Hour))
			require.NoError(t, err)

			_, err = c.Verify(token, KindAccess)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("not a token", func(t *testing.T) {
			_, err := c.Verify("invalid token", KindAccess)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("none signature", func(t *testing.T) {
			token := jwt.NewWithClaims(
				jwt.SigningMethodNone,
				Claims{
					RegisteredClaims: jwt.RegisteredClaims{
						ID:        uuid.NewString(),
						IssuedAt:  jwt.NewNumericDate(now),
						ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
					},
					UserID: identity.UserID,
					Kind:   KindAccess,
				},
			)
			unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)

			_, err = c.Verify(unsigned, KindAccess)
			require.ErrorIs(t, err, apperrors.ErrInvalidToken)
		})

		t.Run("failed verify returns no claims", func(t *testing.T) {
			token, err := c.Issue(identity, KindAccess, now.Add(-time.Hour), now.Add(-time.Minute))
			require.NoError(t, err)

			claims, err := c.Verify(token, KindAccess)
			require.Error(t, err)
			assert.Equal(t, Claims{}, claims, "no partial claims on failure")
		})
	})
}
