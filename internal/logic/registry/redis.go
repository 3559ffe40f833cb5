package registry

import (
	"context"
	"fmt"

	"dex-router/internal/types"

	"github.com/redis/go-redis/v9"
)

// Redis key
const (
	membersKey = "router:registry:executors"
)

// RedisRegistryStore 用 Redis Set 缓存执行器集合，多实例之间共享
type RedisRegistryStore struct {
	rdb *redis.Client
	key string
}

// NewRedisRegistryStore namespace 为空时使用默认 key
func NewRedisRegistryStore(rdb *redis.Client, namespace string) *RedisRegistryStore {
	key := membersKey
	if namespace != "" {
		key = fmt.Sprintf("%s:%s", namespace, membersKey)
	}
	return &RedisRegistryStore{rdb: rdb, key: key}
}

func (r *RedisRegistryStore) Load(ctx context.Context) ([]types.Address, error) {
	members, err := r.rdb.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers error: %w", err)
	}
	result := make([]types.Address, 0, len(members))
	for _, m := range members {
		addr, err := types.TryAddressFromHex(m)
		if err != nil {
			continue // 容错处理，脏数据跳过
		}
		result = append(result, addr)
	}
	return result, nil
}

func (r *RedisRegistryStore) Add(ctx context.Context, addr types.Address) error {
	return r.rdb.SAdd(ctx, r.key, addr.Hex()).Err()
}

func (r *RedisRegistryStore) Remove(ctx context.Context, addr types.Address) error {
	return r.rdb.SRem(ctx, r.key, addr.Hex()).Err()
}

// Replace 原子替换整个集合（用于从 DB 回填缓存）
func (r *RedisRegistryStore) Replace(ctx context.Context, addrs []types.Address) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(addrs) == 0 {
			return nil
		}
		members := make([]interface{}, 0, len(addrs))
		for _, addr := range addrs {
			members = append(members, addr.Hex())
		}
		pipe.SAdd(ctx, r.key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis replace registry error: %w", err)
	}
	return nil
}

// Invalidate 删除整个缓存集合
func (r *RedisRegistryStore) Invalidate(ctx context.Context) error {
	return r.rdb.Del(ctx, r.key).Err()
}
