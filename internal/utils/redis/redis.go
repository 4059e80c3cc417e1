package redis

import (
	"context"
	"fmt"
	"time"

	re "github.com/redis/go-redis/v9"
)

// Redis is the small key/value surface the orchestrator needs: a SETNX-based
// lock plus plain get/delete.
type Redis interface {
	SetNX(ctx context.Context, key string, value string, expireTime time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// Config carries connection settings for the real client.
type Config struct {
	Address   string
	Namespace string
}

type redis struct {
	redis     *re.Client
	namespace string
}

func New(enable bool, cfg Config) Redis {
	if !enable {
		return Dummy()
	}

	return &redis{
		redis: re.NewClient(&re.Options{
			Addr: cfg.Address,
		}),
		namespace: cfg.Namespace,
	}
}

func (r *redis) withNamespace(key string) string {
	return fmt.Sprintf("%s:%s", r.namespace, key)
}

func (r *redis) SetNX(ctx context.Context, key string, value string, expireTime time.Duration) (bool, error) {
	namespacedKey := r.withNamespace(key)
	return r.redis.SetNX(ctx, namespacedKey, value, expireTime).Result()
}

func (r *redis) Get(ctx context.Context, key string) ([]byte, error) {
	namespacedKey := r.withNamespace(key)
	val, err := r.redis.Get(ctx, namespacedKey).Result()
	if err == re.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return []byte(val), nil
}

func (r *redis) Delete(ctx context.Context, key string) (bool, error) {
	namespacedKey := r.withNamespace(key)
	result, err := r.redis.Del(ctx, namespacedKey).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}
