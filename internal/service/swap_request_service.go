package service

import (
	"context"
	"runtime/debug"
	"time"

	"dex-router/internal/mq"
	"dex-router/pkg/logger"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

const (
	pollTimeout    = 200 * time.Millisecond
	publishTimeout = 5 * time.Second
)

// ReceiptPublisher 发布回执
type ReceiptPublisher interface {
	PublishReceipts(ctx context.Context, receipts []*mq.SwapReceipt) error
}

// MessageConsumer 是 *kafka.Consumer 中用到的部分
type MessageConsumer interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
}

// SwapRequestService 消费 swap 请求，逐条交给路由执行并发布回执。
// 路由本身串行执行，这里单 goroutine 消费即可保持分区内顺序。
type SwapRequestService struct {
	consumer  MessageConsumer
	handler   *SwapHandler
	publisher ReceiptPublisher
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSwapRequestService(consumer MessageConsumer, handler *SwapHandler, publisher ReceiptPublisher) *SwapRequestService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SwapRequestService{
		consumer:  consumer,
		handler:   handler,
		publisher: publisher,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (s *SwapRequestService) Start() {
	defer close(s.done)
	logger.Infof("[SwapRequestService] 开始消费 swap 请求")

	for {
		select {
		case <-s.ctx.Done():
			logger.Infof("[SwapRequestService] 已停止")
			return
		default:
		}

		msg, err := s.consumer.ReadMessage(pollTimeout)
		if err != nil {
			if !mq.IsTimeout(err) {
				logger.Warnf("[SwapRequestService] 读取消息失败: %v", err)
			}
			continue
		}
		s.process(msg)
	}
}

func (s *SwapRequestService) Stop() {
	s.cancel()
	<-s.done
}

// process 处理单条消息；回执发布后才提交 offset；panic 时同样提交
func (s *SwapRequestService) process(msg *kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[SwapRequestService] panic: partition=%d offset=%v err=%v\nstack: %s",
				msg.TopicPartition.Partition, msg.TopicPartition.Offset, r, debug.Stack())
		}
		if _, err := s.consumer.CommitMessage(msg); err != nil {
			logger.Warnf("[SwapRequestService] 提交 offset 失败: %v", err)
		}
	}()

	receipts := s.HandleMessage(s.ctx, msg.Value)
	if len(receipts) > 0 {
		ctx, cancel := context.WithTimeout(s.ctx, publishTimeout)
		err := s.publisher.PublishReceipts(ctx, receipts)
		cancel()
		if err != nil {
			logger.Errorf("[SwapRequestService] 回执发布失败: partition=%d offset=%v err=%v",
				msg.TopicPartition.Partition, msg.TopicPartition.Offset, err)
		}
	}
}

// HandleMessage 解析并执行消息中的全部请求；无法解析的消息丢弃
func (s *SwapRequestService) HandleMessage(ctx context.Context, data []byte) []*mq.SwapReceipt {
	requests, err := DecodeRequests(data)
	if err != nil {
		logger.Warnf("[SwapRequestService] 无法解析的消息已丢弃: size=%d err=%v", len(data), err)
		return nil
	}

	receipts := make([]*mq.SwapReceipt, 0, len(requests))
	for _, req := range requests {
		receipt := s.handler.Handle(ctx, req)
		if !receipt.Success {
			logger.Debugf("[SwapRequestService] 请求失败: id=%s reason=%s err=%s", receipt.RequestID, receipt.Reason, receipt.Error)
		}
		receipts = append(receipts, receipt)
	}
	return receipts
}
