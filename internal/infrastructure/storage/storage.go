package storage

import (
	"context"
	"fmt"

	"balance_aggregator/internal/app/port"
	"balance_aggregator/internal/infrastructure/configloader"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// New builds the storage driver selected in the config.
func New(cfg configloader.StorageConfig) (port.KeyValueStore, error) {
	switch cfg.Driver {
	case "file":
		return NewFileStore(cfg.Dir)
	case "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(cfg.Redis), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// LoadJSON reads key and decodes it into v. Returns port.ErrNotFound when the key is absent.
func LoadJSON(ctx context.Context, kv port.KeyValueStore, key string, v any) error {
	data, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

// SaveJSON encodes v and stores it under key, overwriting the previous value.
func SaveJSON(ctx context.Context, kv port.KeyValueStore, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return kv.Set(ctx, key, data)
}
