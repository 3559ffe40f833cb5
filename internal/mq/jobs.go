package mq

import (
	"fmt"

	"dex-router/internal/types"
	"dex-router/internal/utils"
)

// KeyedEvent 已编码事件及其分区键（同一地址的事件落同一分区，保持顺序）
type KeyedEvent struct {
	Key   types.Address
	Event []byte
}

// BuildJobs 按分区键分桶，每个非空分区打包为一条批量消息；
// 桶内保持输入顺序，返回的 job 按分区号升序
func BuildJobs(topic string, partitions int, events []KeyedEvent) ([]*KafkaJob, error) {
	if len(events) == 0 {
		return nil, nil
	}
	if partitions <= 0 {
		partitions = 1
	}

	capPerPartition := utils.CalcCapPerPartition(len(events), partitions, 4)
	buckets := make([][][]byte, partitions)
	for _, ev := range events {
		p := utils.PartitionHashBytes(ev.Key[:], uint32(partitions))
		if buckets[p] == nil {
			buckets[p] = make([][]byte, 0, capPerPartition)
		}
		buckets[p] = append(buckets[p], ev.Event)
	}

	jobs := make([]*KafkaJob, 0, partitions)
	for p, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		value := bucket[0]
		if len(bucket) > 1 {
			var err error
			if value, err = EncodeBatch(bucket); err != nil {
				return nil, fmt.Errorf("partition %d: %w", p, err)
			}
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: int32(p),
			Value:     value,
		})
	}
	return jobs, nil
}
