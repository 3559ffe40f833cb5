package config

import (
	"fmt"
	"strings"

	"dex-router/internal/consts"
	"dex-router/internal/mq"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

type LogConfig struct {
	Format   string `json:",default=console,options=console|json"`       // 日志格式
	LogDir   string `json:",optional"`                                   // 日志目录，为空只输出到 stdout
	Level    string `json:",default=info,options=debug|info|warn|error"` // 日志级别
	Compress bool   `json:",optional"`                                   // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// KafkaConfig 请求消费与回执 / registry 变更发布
type KafkaConfig struct {
	Brokers       string `json:",optional"`           // 为空时不启用 Kafka，多个用英文逗号分隔
	BatchSize     int    `json:",default=32768"`      // 批处理大小（字节）
	LingerMs      int    `json:",default=5"`          // 批处理最大延迟（毫秒）
	GroupID       string `json:",default=dex-router"` // 请求消费组
	SendTimeoutMs int    `json:",default=3000"`       // 单条消息等待 ack 的超时（毫秒）

	Topics struct {
		Request  string `json:",default=router.swap.request"`
		Receipt  string `json:",default=router.swap.receipt"`
		Registry string `json:",default=router.registry"`
	} `json:",optional"`

	Partitions struct {
		Receipt  int `json:",default=4"`
		Registry int `json:",default=1"`
	} `json:",optional"`
}

func (c *KafkaConfig) Enabled() bool { return c.Brokers != "" }

func (c *KafkaConfig) ToProducerOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics: []mq.TopicOption{
			{Topic: c.Topics.Receipt, Partitions: c.Partitions.Receipt},
			{Topic: c.Topics.Registry, Partitions: c.Partitions.Registry},
		},
	}
}

func (c *KafkaConfig) ToConsumerOption() mq.KafkaConsumerOption {
	return mq.KafkaConsumerOption{
		Brokers: c.Brokers,
		GroupID: c.GroupID,
		Topics:  []string{c.Topics.Request},
	}
}

type RedisConfig struct {
	Addr      string `json:",optional"` // 为空时 registry 只落 SQLite
	Password  string `json:",optional"`
	DB        int    `json:",optional"`
	Namespace string `json:",default=router"` // key 前缀
}

type StoreConfig struct {
	SqlitePath string `json:",default=data/registry.db"` // registry 持久化文件
}

type MetricsConfig struct {
	Host string `json:",optional"` // 为空时不启动指标服务
	Port int    `json:",default=9101"`
	Path string `json:",default=/metrics"`
}

func (c *MetricsConfig) Enabled() bool { return c.Host != "" }

func (c *MetricsConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

type RegistryConfig struct {
	SyncIntervalS int `json:",default=30"` // 从持久化存储重新加载 registry 的间隔（秒）
}

// SimulationConfig 模拟环境的初始状态：托管余额、授权、场所与执行器部署
type SimulationConfig struct {
	Router        string `json:",default=0x00000000000000000000000000000000000000ff"`
	PermitService string `json:",default=0x000000000022D473030F116dDEE9F6B43aC78BA3"`
	WrappedNative string `json:",optional"` // 默认 WETH
	ChainID       uint32 `json:",default=1"`

	Balances   []BalanceConfig   `json:",optional"`
	Allowances []AllowanceConfig `json:",optional"`
	Pairs      []PairConfig      `json:",optional"`
	Vaults     []VaultConfig     `json:",optional"`
	Executors  []ExecutorConfig  `json:",optional"`
}

// 数量均为十进制最小单位字符串
type BalanceConfig struct {
	Asset  string
	Owner  string
	Amount string
}

type AllowanceConfig struct {
	Asset   string
	Owner   string
	Spender string
	Amount  string
}

type PairConfig struct {
	Address  string
	TokenA   string
	TokenB   string
	ReserveA string
	ReserveB string
}

type VaultConfig struct {
	Address   string
	AssetIn   string
	AssetOut  string
	RateNum   string
	RateDen   string `json:",default=1"`
	Inventory string `json:",optional"` // 初始 assetOut 库存
}

type ExecutorConfig struct {
	Address string
	Kind    string `json:",options=UniswapV2|FixedRate"`
	Admit   bool   `json:",optional"` // 启动时加入 registry
}

func (c *ExecutorConfig) KindValue() (int, error) {
	kind := consts.ExecutorKindByName(c.Kind)
	if kind == 0 {
		return 0, fmt.Errorf("unknown executor kind %q", c.Kind)
	}
	return kind, nil
}

func (c *SimulationConfig) RouterAddress() (types.Address, error) {
	return parseAddress("router", c.Router)
}

func (c *SimulationConfig) PermitAddress() (types.Address, error) {
	return parseAddress("permit service", c.PermitService)
}

func (c *SimulationConfig) WrappedNativeAddress() (types.Address, error) {
	if strings.TrimSpace(c.WrappedNative) == "" {
		return consts.WrappedNative, nil
	}
	return parseAddress("wrapped native", c.WrappedNative)
}

func parseAddress(name, s string) (types.Address, error) {
	addr, err := types.TryAddressFromHex(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("%s: %w", name, err)
	}
	return addr, nil
}

// RouterConfig 主配置结构体，用于驱动路由模拟服务
type RouterConfig struct {
	Log        LogConfig        `json:",optional"` // 日志配置
	Kafka      KafkaConfig      `json:",optional"` // Kafka 请求 / 回执
	Redis      RedisConfig      `json:",optional"` // registry 缓存
	Store      StoreConfig      `json:",optional"` // registry 持久化
	Metrics    MetricsConfig    `json:",optional"` // prometheus 指标
	Registry   RegistryConfig   `json:",optional"` // registry 同步
	Simulation SimulationConfig `json:",optional"` // 模拟环境初始状态
}
