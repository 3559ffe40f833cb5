package registry

import (
	"context"

	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

// LayeredStore 统一封装 Redis + DB：DB 为准，Redis 为多实例共享的缓存
type LayeredStore struct {
	redis *RedisRegistryStore // 可为 nil
	db    *DBRegistryStore
}

func NewLayeredStore(redis *RedisRegistryStore, db *DBRegistryStore) *LayeredStore {
	return &LayeredStore{redis: redis, db: db}
}

// Load 以 DB 为准，并用 DB 结果覆盖 Redis；DB 不可用时才读 Redis
func (s *LayeredStore) Load(ctx context.Context) ([]types.Address, error) {
	addrs, err := s.db.Load(ctx)
	if err != nil {
		if s.redis == nil {
			return nil, err
		}
		logger.Warnf("[Registry:Load] DB 读取失败，回退到 Redis: %v", err)
		cached, rerr := s.redis.Load(ctx)
		if rerr != nil {
			return nil, err
		}
		return cached, nil
	}

	if s.redis != nil {
		if err := s.redis.Replace(ctx, addrs); err != nil {
			logger.Warnf("[Registry:Load] Redis 回填失败: %v", err)
		}
	}
	return addrs, nil
}

// Add 先写 DB，再写 Redis；Redis 失败时删除缓存 key，下次 Load 从 DB 回填
func (s *LayeredStore) Add(ctx context.Context, addr types.Address) error {
	if err := s.db.Add(ctx, addr); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Add(ctx, addr); err != nil {
			logger.Warnf("[Registry:Add] Redis 写入失败: executor=%s err=%v", addr.Hex(), err)
			s.invalidate(ctx)
		}
	}
	return nil
}

// Remove 先写 DB，再写 Redis；Redis 失败的处理同 Add
func (s *LayeredStore) Remove(ctx context.Context, addr types.Address) error {
	if err := s.db.Remove(ctx, addr); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Remove(ctx, addr); err != nil {
			logger.Warnf("[Registry:Remove] Redis 删除失败: executor=%s err=%v", addr.Hex(), err)
			s.invalidate(ctx)
		}
	}
	return nil
}

func (s *LayeredStore) invalidate(ctx context.Context) {
	if err := s.redis.Invalidate(ctx); err != nil {
		logger.Warnf("[Registry:Invalidate] Redis 缓存清理失败: %v", err)
	}
}
