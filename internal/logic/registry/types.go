package registry

import (
	"context"
	"time"

	"dex-router/internal/types"
)

// ChangeKind 表示 registry 变更类型（与事件编码、DB 状态共用）
type ChangeKind uint8

const (
	ChangeUnknown  ChangeKind = 0
	ChangeAdmitted ChangeKind = 1 // ✅ 加入执行器集合
	ChangeRevoked  ChangeKind = 2 // ❌ 移出执行器集合
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdmitted:
		return "admitted"
	case ChangeRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Change 一条 registry 变更通知
type Change struct {
	Executor types.Address
	Kind     ChangeKind
	At       time.Time
}

// CodeChecker 判断地址上是否部署了可执行代码
type CodeChecker interface {
	HasCode(addr types.Address) bool
}

// Store 持久化执行器集合，registry 是唯一跨调用存活的状态
type Store interface {
	Load(ctx context.Context) ([]types.Address, error)
	Add(ctx context.Context, addr types.Address) error
	Remove(ctx context.Context, addr types.Address) error
}

// Notifier 接收 registry 变更通知
type Notifier interface {
	NotifyRegistryChange(ctx context.Context, change Change) error
}
