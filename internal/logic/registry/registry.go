package registry

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"dex-router/internal/logic/core"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

// Registry 是授权执行器的地址集合，由调度器显式持有，用于在调用前做准入校验。
type Registry struct {
	mu       sync.RWMutex
	members  map[types.Address]struct{}
	code     CodeChecker
	store    Store    // 可为 nil，仅内存
	notifier Notifier // 可为 nil
}

func New(code CodeChecker, store Store, notifier Notifier) *Registry {
	return &Registry{
		members:  make(map[types.Address]struct{}),
		code:     code,
		store:    store,
		notifier: notifier,
	}
}

// Load 用持久化存储中的集合替换当前内存集合
func (r *Registry) Load(ctx context.Context) (int, error) {
	if r.store == nil {
		return r.Len(), nil
	}
	addrs, err := r.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load registry: %w", err)
	}
	members := make(map[types.Address]struct{}, len(addrs))
	for _, addr := range addrs {
		members[addr] = struct{}{}
	}

	r.mu.Lock()
	r.members = members
	r.mu.Unlock()
	return len(members), nil
}

// Admit 加入执行器；目标地址必须已部署代码，否则返回 NotAContract
func (r *Registry) Admit(ctx context.Context, addr types.Address) error {
	if r.code == nil || !r.code.HasCode(addr) {
		return fmt.Errorf("%w: %s", core.ErrNotAContract, addr.Hex())
	}
	if r.store != nil {
		if err := r.store.Add(ctx, addr); err != nil {
			return fmt.Errorf("persist admitted executor %s: %w", addr.Hex(), err)
		}
	}

	r.mu.Lock()
	r.members[addr] = struct{}{}
	r.mu.Unlock()

	logger.Infof("[Registry:Admit] 执行器已加入: executor=%s", addr.Hex())
	r.notify(ctx, Change{Executor: addr, Kind: ChangeAdmitted, At: time.Now()})
	return nil
}

// Revoke 移除执行器，之后对它的调用会以 UnknownExecutor 失败
func (r *Registry) Revoke(ctx context.Context, addr types.Address) error {
	if r.store != nil {
		if err := r.store.Remove(ctx, addr); err != nil {
			return fmt.Errorf("persist revoked executor %s: %w", addr.Hex(), err)
		}
	}

	r.mu.Lock()
	delete(r.members, addr)
	r.mu.Unlock()

	logger.Infof("[Registry:Revoke] 执行器已移除: executor=%s", addr.Hex())
	r.notify(ctx, Change{Executor: addr, Kind: ChangeRevoked, At: time.Now()})
	return nil
}

func (r *Registry) IsExecutor(addr types.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[addr]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members 返回按地址排序的成员列表
func (r *Registry) Members() []types.Address {
	r.mu.RLock()
	result := make([]types.Address, 0, len(r.members))
	for addr := range r.members {
		result = append(result, addr)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i][:], result[j][:]) < 0
	})
	return result
}

// notify 通知失败只记录日志，不影响已经生效的变更
func (r *Registry) notify(ctx context.Context, change Change) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.NotifyRegistryChange(ctx, change); err != nil {
		logger.Errorf("[Registry:Notify] 变更通知发送失败: executor=%s kind=%s err=%v",
			change.Executor.Hex(), change.Kind, err)
	}
}
