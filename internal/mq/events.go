package mq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/near/borsh-go"
)

// EventType 消息前 4 字节（小端）的事件类型
type EventType uint32

const (
	EventRegistryChange EventType = 1
	EventSwapRequest    EventType = 2
	EventSwapReceipt    EventType = 3
	EventBatch          EventType = 4 // 同一分区的多条事件打包
)

func (t EventType) String() string {
	switch t {
	case EventRegistryChange:
		return "registry_change"
	case EventSwapRequest:
		return "swap_request"
	case EventSwapReceipt:
		return "swap_receipt"
	case EventBatch:
		return "batch"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

var (
	ErrShortEvent       = errors.New("event shorter than type prefix")
	ErrUnexpectedEvent  = errors.New("unexpected event type")
	ErrMalformedPayload = errors.New("malformed event payload")
)

// 数量字段统一为无符号大端字节（见 types.AmountToBytes）

// RegistryChangeEvent 执行器加入/移出
type RegistryChangeEvent struct {
	Executor [20]byte
	Kind     uint8 // registry.ChangeKind
	AtMs     int64
}

// PermitPayload 签名预授权
type PermitPayload struct {
	Owner     [20]byte
	Asset     [20]byte
	Spender   [20]byte
	Amount    []byte
	Nonce     uint64
	Deadline  int64
	Signature []byte
}

// SwapRequest 一次 swap 请求
type SwapRequest struct {
	RequestID    string
	Strategy     uint8
	SlotCount    uint16 // 仅 split 使用
	AmountIn     []byte
	AssetIn      [20]byte
	AssetOut     [20]byte
	MinOut       []byte
	WrapIn       bool
	UnwrapOut    bool
	Recipient    [20]byte
	Caller       [20]byte
	Value        []byte
	PullRequired bool
	Plan         []byte
	HasPermit    bool
	Permit       PermitPayload
}

// SwapReceipt 请求处理结果
type SwapReceipt struct {
	RequestID string
	Strategy  uint8
	Recipient [20]byte
	AssetOut  [20]byte
	AmountOut []byte
	Success   bool
	Reason    string // 失败原因标签，与指标一致
	Error     string
	ElapsedUs int64
	AtMs      int64
}

type eventBatch struct {
	Events [][]byte
}

// EncodeEvent 将事件编码为带类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 borsh 序列化数据
//
// borsh 把指针编码为 Option，这里先解引用，指针与值编码结果一致
func EncodeEvent(eventType EventType, v interface{}) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("EncodeEvent: nil %T", v)
		}
		rv = rv.Elem()
	}
	payload, err := borsh.Serialize(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: serialize %T: %w", v, err)
	}
	buf := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(eventType))
	return append(buf, payload...), nil
}

// DecodeEvent 拆出事件类型与 payload，payload 与 data 共享底层数组
func DecodeEvent(data []byte) (EventType, []byte, error) {
	if len(data) < 4 {
		return 0, nil, ErrShortEvent
	}
	return EventType(binary.LittleEndian.Uint32(data[:4])), data[4:], nil
}

// DecodeEventAs 校验类型后反序列化 payload 到 out
func DecodeEventAs(data []byte, want EventType, out interface{}) error {
	t, payload, err := DecodeEvent(data)
	if err != nil {
		return err
	}
	if t != want {
		return fmt.Errorf("%w: want %s, got %s", ErrUnexpectedEvent, want, t)
	}
	return deserialize(payload, out)
}

// EncodeBatch 将已编码的事件打包为一条消息
func EncodeBatch(events [][]byte) ([]byte, error) {
	return EncodeEvent(EventBatch, eventBatch{Events: events})
}

// SplitEvents 展开消息：批量消息返回其中每条事件，否则返回消息本身
func SplitEvents(data []byte) ([][]byte, error) {
	t, payload, err := DecodeEvent(data)
	if err != nil {
		return nil, err
	}
	if t != EventBatch {
		return [][]byte{data}, nil
	}
	var batch eventBatch
	if err := deserialize(payload, &batch); err != nil {
		return nil, err
	}
	return batch.Events, nil
}

// deserialize borsh 对截断数据可能 panic，统一转换为错误
func deserialize(payload []byte, out interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformedPayload, r)
		}
	}()
	if err := borsh.Deserialize(out, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
