package redisstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/teampulse/teampulse/internal/apperrors"
	"github.com/teampulse/teampulse/internal/models"
	"github.com/teampulse/teampulse/internal/repository"
	"github.com/teampulse/teampulse/internal/repository/tokenhash"
)

const (
	tokenKeyPrefix = "refresh:token:"
	userKeyPrefix  = "refresh:user:"
)

// claimToken deletes the record key and its index entry in one atomic step.
// DEL reports 1 for exactly one caller, which is what gives rotation its
// single-winner guarantee on this backend.
const claimTokenScript = `
local existed = redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return existed
`

var claimTokenLua = redis.NewScript(claimTokenScript)

// RefreshTokenRepo keeps refresh token records in Redis: one hash per
// record with a TTL at expires_at, plus a per-user ZSET scored by
// created_at for quota counting and oldest-first eviction.
//
// Redis TTL eviction makes index entries go stale; every read path prunes
// members whose record key is gone.
type RefreshTokenRepo struct {
	client *redis.Client
}

func NewRefreshTokenRepo(client *redis.Client) repository.RefreshTokenRepo {
	return &RefreshTokenRepo{client: client}
}

func tokenKey(id uuid.UUID) string {
	return tokenKeyPrefix + id.String()
}

func userKey(userID uuid.UUID) string {
	return userKeyPrefix + userID.String()
}

func (r *RefreshTokenRepo) Save(ctx context.Context, userID uuid.UUID, bearer string, createdAt time.Time, expiresAt time.Time) (models.RefreshToken, error) {
	salt, err := tokenhash.NewSalt()
	if err != nil {
		return models.RefreshToken{}, err
	}

	token := models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenhash.Sum(salt, bearer),
		Salt:      salt,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, tokenKey(token.ID), map[string]any{
		"user_id":    token.UserID.String(),
		"token_hash": hex.EncodeToString(token.TokenHash),
		"salt":       hex.EncodeToString(token.Salt),
		"created_at": strconv.FormatInt(token.CreatedAt.UnixNano(), 10),
		"expires_at": strconv.FormatInt(token.ExpiresAt.UnixNano(), 10),
	})
	pipe.ExpireAt(ctx, tokenKey(token.ID), token.ExpiresAt)
	pipe.ZAdd(ctx, userKey(userID), redis.Z{
		Score:  float64(token.CreatedAt.UnixNano()),
		Member: token.ID.String(),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return models.RefreshToken{}, fmt.Errorf("redis error: %w", err)
	}

	return token, nil
}

func (r *RefreshTokenRepo) FindMatching(ctx context.Context, userID uuid.UUID, bearer string) (models.RefreshToken, error) {
	tokens, err := r.listForUser(ctx, userID)
	if err != nil {
		return models.RefreshToken{}, err
	}

	// All candidates are checked, no early exit on first match
	var match models.RefreshToken
	found := false
	for _, t := range tokens {
		if tokenhash.Match(t.Salt, t.TokenHash, bearer) && !found {
			match = t
			found = true
		}
	}

	if !found {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}
	return match, nil
}

func (r *RefreshTokenRepo) Delete(ctx context.Context, tokenID uuid.UUID) (bool, error) {
	// The index key is derived from the owner, read it before claiming.
	// If the record is gone already the claim below reports false anyway.
	owner, err := r.client.HGet(ctx, tokenKey(tokenID), "user_id").Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}

	userID, err := uuid.Parse(owner)
	if err != nil {
		return false, fmt.Errorf("redis error: corrupt owner id %q: %w", owner, err)
	}

	existed, err := claimTokenLua.Run(ctx, r.client,
		[]string{tokenKey(tokenID), userKey(userID)},
		tokenID.String(),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}

	return existed == 1, nil
}

func (r *RefreshTokenRepo) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	ids, err := r.client.ZRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.Del(ctx, tokenKeyPrefix+id)
	}
	pipe.Del(ctx, userKey(userID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) CountForUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tokens, err := r.listForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(tokens), nil
}

func (r *RefreshTokenRepo) OldestForUser(ctx context.Context, userID uuid.UUID) (models.RefreshToken, error) {
	tokens, err := r.listForUser(ctx, userID)
	if err != nil {
		return models.RefreshToken{}, err
	}
	if len(tokens) == 0 {
		return models.RefreshToken{}, apperrors.ErrRefreshTokenNotFound
	}
	return tokens[0], nil
}

// DeleteExpired prunes index entries whose record key was evicted by TTL.
// Record expiry itself is handled by Redis.
func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, _ time.Time) (int64, error) {
	var pruned int64

	iter := r.client.Scan(ctx, 0, userKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		ids, err := r.client.ZRange(ctx, key, 0, -1).Result()
		if err != nil {
			return pruned, fmt.Errorf("redis error: %w", err)
		}

		for _, id := range ids {
			exists, err := r.client.Exists(ctx, tokenKeyPrefix+id).Result()
			if err != nil {
				return pruned, fmt.Errorf("redis error: %w", err)
			}
			if exists == 0 {
				if err := r.client.ZRem(ctx, key, id).Err(); err != nil {
					return pruned, fmt.Errorf("redis error: %w", err)
				}
				pruned++
			}
		}
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("redis error: %w", err)
	}

	return pruned, nil
}

// listForUser returns live records ordered by created_at, pruning index
// members whose record key expired
func (r *RefreshTokenRepo) listForUser(ctx context.Context, userID uuid.UUID) ([]models.RefreshToken, error) {
	ids, err := r.client.ZRange(ctx, userKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	tokens := make([]models.RefreshToken, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, tokenKeyPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		if len(fields) == 0 {
			// record evicted by TTL, drop the stale index entry
			if err := r.client.ZRem(ctx, userKey(userID), id).Err(); err != nil {
				return nil, fmt.Errorf("redis error: %w", err)
			}
			continue
		}

		token, err := fieldsToToken(id, fields)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

func fieldsToToken(id string, fields map[string]string) (models.RefreshToken, error) {
	var t models.RefreshToken
	var err error

	if t.ID, err = uuid.Parse(id); err != nil {
		return t, fmt.Errorf("redis error: corrupt token id %q: %w", id, err)
	}
	if t.UserID, err = uuid.Parse(fields["user_id"]); err != nil {
		return t, fmt.Errorf("redis error: corrupt owner id: %w", err)
	}
	if t.TokenHash, err = hex.DecodeString(fields["token_hash"]); err != nil {
		return t, fmt.Errorf("redis error: corrupt token hash: %w", err)
	}
	if t.Salt, err = hex.DecodeString(fields["salt"]); err != nil {
		return t, fmt.Errorf("redis error: corrupt salt: %w", err)
	}

	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return t, fmt.Errorf("redis error: corrupt created_at: %w", err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return t, fmt.Errorf("redis error: corrupt expires_at: %w", err)
	}
	t.CreatedAt = time.Unix(0, createdAt)
	t.ExpiresAt = time.Unix(0, expiresAt)

	return t, nil
}
