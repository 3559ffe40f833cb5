package svc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dex-router/internal/config"
	"dex-router/internal/logic/custody"
	"dex-router/internal/logic/dispatcher"
	"dex-router/internal/logic/permit"
	"dex-router/internal/logic/registry"
	"dex-router/internal/logic/router"
	"dex-router/internal/mq"
	"dex-router/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ServiceContext 包含路由服务运行所需的全部资源
type ServiceContext struct {
	Config     config.RouterConfig
	Sim        *Simulation
	Registry   *registry.Registry
	Dispatcher *dispatcher.Dispatcher
	Permits    *permit.Service
	Router     *router.Router

	Producer  *kafka.Producer // Kafka 未启用时为 nil
	Consumer  *kafka.Consumer // Kafka 未启用时为 nil
	Publisher *mq.Publisher   // Kafka 未启用时为 nil

	redis   *redis.Client
	dbStore *registry.DBRegistryStore
}

// NewServiceContext 创建服务上下文，失败时释放已创建的资源
func NewServiceContext(c config.RouterConfig) (_ *ServiceContext, err error) {
	ctx := &ServiceContext{Config: c}
	defer func() {
		if err != nil {
			ctx.Close()
		}
	}()

	// 1. 模拟链上状态
	if ctx.Sim, err = BuildSimulation(&c.Simulation); err != nil {
		return nil, fmt.Errorf("build simulation: %w", err)
	}

	// 2. Kafka（可选）
	var notifier registry.Notifier
	if c.Kafka.Enabled() {
		if ctx.Producer, err = mq.NewKafkaProducer(c.Kafka.ToProducerOption()); err != nil {
			logger.Errorf("[Svc:Init] Kafka producer 初始化失败: %v", err)
			return nil, err
		}
		if ctx.Consumer, err = mq.NewKafkaConsumer(c.Kafka.ToConsumerOption()); err != nil {
			logger.Errorf("[Svc:Init] Kafka consumer 初始化失败: %v", err)
			return nil, err
		}
		sender := mq.NewKafkaSender(ctx.Producer, time.Duration(c.Kafka.SendTimeoutMs)*time.Millisecond)
		ctx.Publisher = mq.NewPublisher(sender, mq.PublisherOption{
			ReceiptTopic:       c.Kafka.Topics.Receipt,
			ReceiptPartitions:  c.Kafka.Partitions.Receipt,
			RegistryTopic:      c.Kafka.Topics.Registry,
			RegistryPartitions: c.Kafka.Partitions.Registry,
		})
		notifier = ctx.Publisher
	}

	// 3. registry 存储：SQLite 为准，Redis 为缓存（可选）
	store, err := ctx.openRegistryStore()
	if err != nil {
		return nil, err
	}
	ctx.Registry = registry.New(ctx.Sim.Catalog, store, notifier)
	if err = ctx.initRegistry(); err != nil {
		return nil, err
	}

	// 4. 路由
	self, err := c.Simulation.RouterAddress()
	if err != nil {
		return nil, err
	}
	permitAddr, err := c.Simulation.PermitAddress()
	if err != nil {
		return nil, err
	}
	wrapped, err := c.Simulation.WrappedNativeAddress()
	if err != nil {
		return nil, err
	}
	ctx.Dispatcher = dispatcher.New(ctx.Registry, ctx.Sim.Catalog)
	ctx.Permits = permit.NewService(permitAddr, c.Simulation.ChainID, ctx.Sim.Ledger)
	native := custody.NewNativeWrapper(ctx.Sim.Ledger, wrapped)
	ctx.Router = router.New(self, ctx.Sim.Ledger, native, ctx.Dispatcher, ctx.Permits)

	pairs, vaults := ctx.Sim.Book.Len()
	logger.Infof("[Svc:Init] 服务上下文初始化完成: router=%s pairs=%d vaults=%d executors=%d kafka=%t",
		self.Hex(), pairs, vaults, ctx.Registry.Len(), c.Kafka.Enabled())
	return ctx, nil
}

func (ctx *ServiceContext) openRegistryStore() (registry.Store, error) {
	path := ctx.Config.Store.SqlitePath
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := registry.OpenDBRegistryStore(path)
	if err != nil {
		return nil, err
	}
	ctx.dbStore = db

	var cache *registry.RedisRegistryStore
	if addr := ctx.Config.Redis.Addr; addr != "" {
		ctx.redis = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: ctx.Config.Redis.Password,
			DB:       ctx.Config.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := ctx.redis.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", addr, err)
		}
		cache = registry.NewRedisRegistryStore(ctx.redis, ctx.Config.Redis.Namespace)
	}
	return registry.NewLayeredStore(cache, db), nil
}

// initRegistry 先加载持久化集合，再加入配置要求启动时准入的执行器
func (ctx *ServiceContext) initRegistry() error {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	n, err := ctx.Registry.Load(c)
	if err != nil {
		return err
	}
	logger.Infof("[Svc:InitRegistry] 已加载执行器: count=%d", n)

	for _, addr := range ctx.Sim.Admit {
		if ctx.Registry.IsExecutor(addr) {
			continue
		}
		if err := ctx.Registry.Admit(c, addr); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭服务上下文中的资源
func (ctx *ServiceContext) Close() {
	if ctx.Consumer != nil {
		if err := ctx.Consumer.Close(); err != nil {
			logger.Warnf("[Svc:Close] 关闭 Kafka consumer 失败: %v", err)
		}
	}
	if ctx.Producer != nil {
		ctx.Producer.Flush(3000)
		ctx.Producer.Close()
	}
	var errs []error
	if ctx.redis != nil {
		errs = append(errs, ctx.redis.Close())
	}
	if ctx.dbStore != nil {
		errs = append(errs, ctx.dbStore.Close())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warnf("[Svc:Close] 关闭存储失败: %v", err)
	}
}
