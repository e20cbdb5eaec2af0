package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	rotateStatusNotFound int64 = 0
	rotateStatusRevoked  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript performs the compare-and-set entirely inside Redis so two
// concurrent rotations cannot interleave the hash check and the swap. On a
// mismatch it revokes the family in the same script execution.
const rotateScript = `
local fam_key = KEYS[1]
local revoked_key = KEYS[2]
local hash_prefix = ARGV[1]
local fam_id = ARGV[2]
local old_hash = ARGV[3]
local new_hash = ARGV[4]
local now = ARGV[5]
local ttl_ms = tonumber(ARGV[6])

if redis.call("EXISTS", fam_key) == 0 then
  return 0
end
if redis.call("HGET", fam_key, "revoked") == "1" then
  return 1
end

local current = redis.call("HGET", fam_key, "token_hash")
if current ~= old_hash then
  redis.call("HSET", fam_key, "revoked", "1", "updated_at", now)
  redis.call("DEL", hash_prefix .. current)
  redis.call("ZADD", revoked_key, now, fam_id)
  return 2
end

redis.call("HSET", fam_key, "token_hash", new_hash, "updated_at", now)
redis.call("DEL", hash_prefix .. old_hash)
redis.call("SET", hash_prefix .. new_hash, fam_id)
if ttl_ms > 0 then
  redis.call("PEXPIRE", fam_key, ttl_ms)
  redis.call("PEXPIRE", hash_prefix .. new_hash, ttl_ms)
end
return 3
`

var rotateLua = redis.NewScript(rotateScript)

// revokeScript revokes one family and drops its hash index atomically.
const revokeScript = `
local fam_key = KEYS[1]
local revoked_key = KEYS[2]
local hash_prefix = ARGV[1]
local fam_id = ARGV[2]
local now = ARGV[3]

if redis.call("EXISTS", fam_key) == 0 then
  return 0
end
if redis.call("HGET", fam_key, "revoked") == "1" then
  return 1
end

local current = redis.call("HGET", fam_key, "token_hash")
redis.call("HSET", fam_key, "revoked", "1", "updated_at", now)
if current then
  redis.call("DEL", hash_prefix .. current)
end
redis.call("ZADD", revoked_key, now, fam_id)
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Redis is a Store backed by a shared Redis instance. Families are hashes
// under <prefix>:fam:<id> with a token-hash index and a per-user set; a
// sorted set of revocation times drives Prune.
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	lifetime time.Duration
	now      func() time.Time
}

// NewRedis wraps client. lifetime bounds how long an idle (never rotated,
// never revoked) family survives; it should exceed the refresh-token TTL.
// Zero disables the bound.
func NewRedis(client redis.UniversalClient, prefix string, lifetime time.Duration) *Redis {
	if prefix == "" {
		prefix = "rf"
	}
	return &Redis{client: client, prefix: prefix, lifetime: lifetime, now: time.Now}
}

func (r *Redis) famKey(id string) string { return r.prefix + ":fam:" + id }

func (r *Redis) hashPrefix() string { return r.prefix + ":hash:" }

func (r *Redis) hashKey(h string) string { return r.hashPrefix() + h }

func (r *Redis) userKey(uid string) string { return r.prefix + ":user:" + uid }

func (r *Redis) revokedKey() string { return r.prefix + ":revoked" }

func (r *Redis) Create(ctx context.Context, id, userID, tokenHash string) (Family, error) {
	now := r.now()
	fam := Family{
		ID:               id,
		UserID:           userID,
		CurrentTokenHash: tokenHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.famKey(fam.ID), map[string]interface{}{
		"user_id":    fam.UserID,
		"token_hash": fam.CurrentTokenHash,
		"revoked":    "0",
		"created_at": strconv.FormatInt(now.UnixMilli(), 10),
		"updated_at": strconv.FormatInt(now.UnixMilli(), 10),
	})
	pipe.Set(ctx, r.hashKey(tokenHash), fam.ID, r.lifetime)
	pipe.SAdd(ctx, r.userKey(userID), fam.ID)
	if r.lifetime > 0 {
		pipe.PExpire(ctx, r.famKey(fam.ID), r.lifetime)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return Family{}, fmt.Errorf("create family: %w", err)
	}
	return fam, nil
}

func (r *Redis) Get(ctx context.Context, id string) (Family, error) {
	fields, err := r.client.HGetAll(ctx, r.famKey(id)).Result()
	if err != nil {
		return Family{}, fmt.Errorf("get family: %w", err)
	}
	if len(fields) == 0 {
		return Family{}, ErrNotFound
	}
	return familyFromFields(id, fields), nil
}

func (r *Redis) FindByTokenHash(ctx context.Context, hash string) (Family, error) {
	id, err := r.client.Get(ctx, r.hashKey(hash)).Result()
	if errors.Is(err, redis.Nil) {
		return Family{}, ErrNotFound
	}
	if err != nil {
		return Family{}, fmt.Errorf("find family by hash: %w", err)
	}

	fam, err := r.Get(ctx, id)
	if err != nil {
		return Family{}, err
	}
	if fam.Revoked {
		return Family{}, ErrNotFound
	}
	return fam, nil
}

func (r *Redis) Rotate(ctx context.Context, id, oldHash, newHash string) error {
	status, err := rotateLua.Run(ctx, r.client,
		[]string{r.famKey(id), r.revokedKey()},
		r.hashPrefix(), id, oldHash, newHash,
		strconv.FormatInt(r.now().UnixMilli(), 10),
		strconv.FormatInt(r.lifetime.Milliseconds(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("rotate family: %w", err)
	}

	switch status {
	case rotateStatusRotated:
		return nil
	case rotateStatusMismatch:
		return ErrReuse
	case rotateStatusRevoked:
		return ErrRevoked
	default:
		return ErrNotFound
	}
}

func (r *Redis) RevokeFamily(ctx context.Context, id string) error {
	existed, err := revokeLua.Run(ctx, r.client,
		[]string{r.famKey(id), r.revokedKey()},
		r.hashPrefix(), id,
		strconv.FormatInt(r.now().UnixMilli(), 10),
	).Int64()
	if err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	if existed == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := r.client.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user families: %w", err)
	}
	for _, id := range ids {
		if err := r.RevokeFamily(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

func (r *Redis) Prune(ctx context.Context, maxAge time.Duration) error {
	cutoff := strconv.FormatInt(r.now().Add(-maxAge).UnixMilli(), 10)
	ids, err := r.client.ZRangeByScore(ctx, r.revokedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return fmt.Errorf("scan revoked families: %w", err)
	}

	for _, id := range ids {
		userID, err := r.client.HGet(ctx, r.famKey(id), "user_id").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("prune family %s: %w", id, err)
		}

		pipe := r.client.TxPipeline()
		pipe.Del(ctx, r.famKey(id))
		pipe.ZRem(ctx, r.revokedKey(), id)
		if userID != "" {
			pipe.SRem(ctx, r.userKey(userID), id)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("prune family %s: %w", id, err)
		}
	}
	return nil
}

func familyFromFields(id string, fields map[string]string) Family {
	createdMs, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	updatedMs, _ := strconv.ParseInt(fields["updated_at"], 10, 64)
	return Family{
		ID:               id,
		UserID:           fields["user_id"],
		CurrentTokenHash: fields["token_hash"],
		Revoked:          fields["revoked"] == "1",
		CreatedAt:        time.UnixMilli(createdMs),
		UpdatedAt:        time.UnixMilli(updatedMs),
	}
}
