package redisstore

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teampulse/teampulse/internal/apperrors"
)

func newTestRepo(t *testing.T) (*RefreshTokenRepo, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &RefreshTokenRepo{client: client}, mr
}

func Test_RefreshTokenRepo(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(7 * 24 * time.Hour)

	t.Run("Save and FindMatching", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		userID := uuid.New()

		saved, err := repo.Save(t.Context(), userID, "bearer-one", now, expiresAt)
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), userID, "bearer-two", now.Add(time.Second), expiresAt)
		require.NoError(t, err)

		found, err := repo.FindMatching(t.Context(), userID, "bearer-one")
		require.NoError(t, err)
		assert.Equal(t, saved.ID, found.ID)
		assert.Equal(t, userID, found.UserID)
		assert.True(t, found.ExpiresAt.Equal(expiresAt))

		_, err = repo.FindMatching(t.Context(), userID, "never-issued")
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

		_, err = repo.FindMatching(t.Context(), uuid.New(), "bearer-one")
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "foreign user must not see the token")
	})

	t.Run("Delete claims exactly once", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		userID := uuid.New()

		saved, err := repo.Save(t.Context(), userID, "bearer-one", now, expiresAt)
		require.NoError(t, err)

		deleted, err := repo.Delete(t.Context(), saved.ID)
		require.NoError(t, err)
		require.True(t, deleted)

		deleted, err = repo.Delete(t.Context(), saved.ID)
		require.NoError(t, err)
		require.False(t, deleted, "second delete should see the record gone")

		count, err := repo.CountForUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "index entry should be gone with the record")
	})

	t.Run("DeleteAllForUser", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		userID := uuid.New()

		_, err := repo.Save(t.Context(), userID, "bearer-one", now, expiresAt)
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), userID, "bearer-two", now, expiresAt)
		require.NoError(t, err)

		require.NoError(t, repo.DeleteAllForUser(t.Context(), userID))

		count, err := repo.CountForUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		require.NoError(t, repo.DeleteAllForUser(t.Context(), userID), "repeat delete is a no-op")
	})

	t.Run("CountForUser and OldestForUser", func(t *testing.T) {
		repo, _ := newTestRepo(t)
		userID := uuid.New()

		count, err := repo.CountForUser(t.Context(), userID)
		require.NoError(t, err)
		require.Equal(t, 0, count)

		_, err = repo.OldestForUser(t.Context(), userID)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

		first, err := repo.Save(t.Context(), userID, "bearer-one", now, expiresAt)
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), userID, "bearer-two", now.Add(time.Second), expiresAt)
		require.NoError(t, err)

		count, err = repo.CountForUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		oldest, err := repo.OldestForUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, first.ID, oldest.ID)
	})

	t.Run("TTL eviction prunes the index", func(t *testing.T) {
		repo, mr := newTestRepo(t)
		userID := uuid.New()

		_, err := repo.Save(t.Context(), userID, "bearer-short", now, now.Add(time.Minute))
		require.NoError(t, err)
		_, err = repo.Save(t.Context(), userID, "bearer-long", now, expiresAt)
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		count, err := repo.CountForUser(t.Context(), userID)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "evicted record should not be counted")

		_, err = repo.FindMatching(t.Context(), userID, "bearer-short")
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	})

	t.Run("DeleteExpired prunes stale index members", func(t *testing.T) {
		repo, mr := newTestRepo(t)
		userID := uuid.New()

		_, err := repo.Save(t.Context(), userID, "bearer-short", now, now.Add(time.Minute))
		require.NoError(t, err)

		mr.FastForward(2 * time.Minute)

		pruned, err := repo.DeleteExpired(t.Context(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), pruned)

		pruned, err = repo.DeleteExpired(t.Context(), time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(0), pruned, "second sweep has nothing to prune")
	})
}
