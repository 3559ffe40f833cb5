package mq

import (
	"errors"
	"fmt"
	"os"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

type KafkaConsumerOption struct {
	Brokers string   // Kafka broker 地址，多个用英文逗号分隔
	GroupID string   // 消费组
	Topics  []string // 订阅的 topic
}

// NewKafkaConsumer 创建消费者并订阅 topic；offset 在处理完成后手动提交
func NewKafkaConsumer(cfg KafkaConsumerOption) (*kafka.Consumer, error) {
	if len(cfg.Topics) == 0 {
		return nil, errors.New("no topics to subscribe")
	}

	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":     cfg.Brokers,
		"group.id":              cfg.GroupID,
		"client.id":             fmt.Sprintf("dex-router-%s", host),
		"auto.offset.reset":     "latest", // 历史请求不重放
		"enable.auto.commit":    false,
		"session.timeout.ms":    10000,
		"heartbeat.interval.ms": 3000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	if err := consumer.SubscribeTopics(cfg.Topics, nil); err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("failed to subscribe %v: %w", cfg.Topics, err)
	}
	return consumer, nil
}

// IsTimeout 判断 ReadMessage 返回的是否为轮询超时
func IsTimeout(err error) bool {
	var kerr kafka.Error
	if errors.As(err, &kerr) {
		return kerr.Code() == kafka.ErrTimedOut
	}
	return false
}
