package storage

import (
	"context"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/infrastructure/configloader"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps keys in redis under "<namespace>:<key>".
type RedisStore struct {
	client    redis.UniversalClient // works with both single and cluster
	namespace string
}

// NewRedisStore connects lazily, the first command opens the connection.
func NewRedisStore(cfg configloader.RedisConfig) *RedisStore {
	var rdb redis.UniversalClient
	if cfg.UseCluster && len(cfg.Addrs) > 1 {
		rdb = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	} else {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Addrs[0],
			Password: cfg.Password,
			DB:       0,
		})
	}
	return NewRedisStoreWithClient(rdb, cfg.Namespace)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(k string) string {
	if s.namespace == "" {
		return k
	}
	return s.namespace + ":" + k
}

// Get implements port.KeyValueStore.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, port.ErrNotFound
		}
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

// Set implements port.KeyValueStore. Keys never expire.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Delete implements port.KeyValueStore.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

// Close releases the redis connections.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
