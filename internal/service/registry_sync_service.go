package service

import (
	"context"
	"time"

	"dex-router/internal/logic/registry"
	"dex-router/pkg/logger"
)

// RegistrySyncService 定期从持久化存储重新加载 registry，使多实例之间的准入变更生效
type RegistrySyncService struct {
	registry *registry.Registry
	interval time.Duration
	stopChan chan struct{}
}

func NewRegistrySyncService(r *registry.Registry, interval time.Duration) *RegistrySyncService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RegistrySyncService{
		registry: r,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *RegistrySyncService) Start() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sync()
		case <-s.stopChan:
			return
		}
	}
}

func (s *RegistrySyncService) Stop() {
	close(s.stopChan)
}

func (s *RegistrySyncService) sync() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval/2)
	defer cancel()

	before := s.registry.Len()
	n, err := s.registry.Load(ctx)
	if err != nil {
		logger.Warnf("[RegistrySync] 周期性加载失败: %v", err)
		return
	}
	if n != before {
		logger.Infof("[RegistrySync] 执行器集合已变化: %d → %d", before, n)
	}
}
