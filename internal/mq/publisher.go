package mq

import (
	"context"
	"errors"
	"fmt"

	"dex-router/internal/logic/registry"
	"dex-router/pkg/logger"
)

type PublisherOption struct {
	ReceiptTopic       string
	ReceiptPartitions  int
	RegistryTopic      string
	RegistryPartitions int
}

// Publisher 发布 registry 变更与 swap 回执，实现 registry.Notifier
type Publisher struct {
	sender Sender
	opt    PublisherOption
}

var _ registry.Notifier = (*Publisher)(nil)

func NewPublisher(sender Sender, opt PublisherOption) *Publisher {
	return &Publisher{sender: sender, opt: opt}
}

func (p *Publisher) NotifyRegistryChange(ctx context.Context, change registry.Change) error {
	data, err := EncodeEvent(EventRegistryChange, RegistryChangeEvent{
		Executor: change.Executor,
		Kind:     uint8(change.Kind),
		AtMs:     change.At.UnixMilli(),
	})
	if err != nil {
		return err
	}
	jobs, err := BuildJobs(p.opt.RegistryTopic, p.opt.RegistryPartitions, []KeyedEvent{{Key: change.Executor, Event: data}})
	if err != nil {
		return err
	}
	return p.send(ctx, "NotifyRegistryChange", jobs)
}

// PublishReceipts 按 recipient 分区批量发布回执
func (p *Publisher) PublishReceipts(ctx context.Context, receipts []*SwapReceipt) error {
	if len(receipts) == 0 {
		return nil
	}
	events := make([]KeyedEvent, 0, len(receipts))
	for _, r := range receipts {
		data, err := EncodeEvent(EventSwapReceipt, r)
		if err != nil {
			return err
		}
		events = append(events, KeyedEvent{Key: r.Recipient, Event: data})
	}
	jobs, err := BuildJobs(p.opt.ReceiptTopic, p.opt.ReceiptPartitions, events)
	if err != nil {
		return err
	}
	return p.send(ctx, "PublishReceipts", jobs)
}

func (p *Publisher) send(ctx context.Context, op string, jobs []*KafkaJob) error {
	_, failed := p.sender.Send(ctx, jobs)
	if len(failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(failed))
	for _, f := range failed {
		logger.Errorf("[MQ:%s] 发送失败: topic=%s partition=%d err=%v", op, f.Job.Topic, f.Job.Partition, f.Err)
		errs = append(errs, f.Err)
	}
	return fmt.Errorf("%d/%d messages failed: %w", len(failed), len(jobs), errors.Join(errs...))
}
