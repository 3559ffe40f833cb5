package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"dex-router/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/prometheus"
)

// MetricsService 暴露 prometheus 指标
type MetricsService struct {
	server *http.Server
}

func NewMetricsService(addr, path string) *MetricsService {
	// go-zero 的 metric 只有在启用后才会记录
	prometheus.Enable()

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	return &MetricsService{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func (s *MetricsService) Start() {
	logger.Infof("[MetricsService] 指标服务启动: addr=%s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("[MetricsService] 指标服务退出: %v", err)
	}
}

func (s *MetricsService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warnf("[MetricsService] 关闭失败: %v", err)
	}
}
