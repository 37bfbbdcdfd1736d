package snapshot

import (
	"context"
	"errors"

	"engagement-controlplane/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// Redis stores the snapshot under a single string key. SET replaces the value atomically.
type Redis struct {
	rdb *redis.Client
	key string
}

func NewRedis(rdb *redis.Client, key string) *Redis {
	return &Redis{rdb: rdb, key: rediskey.BuildSnapshotKey(key)}
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	raw, err := r.rdb.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (r *Redis) Save(ctx context.Context, payload []byte) error {
	return r.rdb.Set(ctx, r.key, payload, 0).Err()
}
