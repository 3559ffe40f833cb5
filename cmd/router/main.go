package main

import (
	"flag"
	"runtime/debug"
	"time"

	"dex-router/internal/config"
	"dex-router/internal/service"
	"dex-router/internal/svc"
	"dex-router/pkg/logger"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"
)

var configFile = flag.String("f", "etc/router.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	var c config.RouterConfig
	conf.MustLoad(*configFile, &c)

	if err := logger.Init(c.Log.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	serviceContext, err := svc.NewServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	sg := zerosvc.NewServiceGroup()
	defer sg.Stop()

	sg.Add(service.NewRegistrySyncService(serviceContext.Registry, time.Duration(c.Registry.SyncIntervalS)*time.Second))
	if c.Metrics.Enabled() {
		sg.Add(service.NewMetricsService(c.Metrics.Addr(), c.Metrics.Path))
	}
	if c.Kafka.Enabled() {
		handler := service.NewSwapHandler(serviceContext.Router)
		sg.Add(service.NewSwapRequestService(serviceContext.Consumer, handler, serviceContext.Publisher))
	} else {
		logger.Warnf("[Main] 未配置 Kafka，不消费 swap 请求")
	}

	logx.Infof("Starting router services, router=%s", serviceContext.Router.Address().Hex())

	// 阻塞直到收到退出信号
	sg.Start()
}
