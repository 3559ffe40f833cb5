package dispatcher

import (
	"fmt"
	"math/big"
	"runtime/debug"

	"dex-router/internal/logic/core"
	"dex-router/internal/metrics"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

// Membership 执行器准入集合（registry.Registry）
type Membership interface {
	IsExecutor(addr types.Address) bool
}

// CodeResolver 地址 → 已部署的执行器实现
type CodeResolver interface {
	CodeAt(addr types.Address) (core.Executor, bool)
}

// Dispatcher 校验执行器准入后，以路由身份原地调用执行器。
// 除 registry 准入外不做任何隔离：执行器可以修改路由托管的资产，也可以经 Env 拉取调用方资金（受授权守卫约束）。
type Dispatcher struct {
	registry Membership
	code     CodeResolver
}

func New(registry Membership, code CodeResolver) *Dispatcher {
	return &Dispatcher{registry: registry, code: code}
}

// Invoke 调用执行器并返回其声明的产出数量：
//  1. 不在 registry 中 → UnknownExecutor
//  2. 执行器返回错误或 panic → ExecutorCallFailed（保留原始错误）
//  3. 返回产出数量
func (d *Dispatcher) Invoke(env *core.Env, executor types.Address, amount *big.Int, data []byte) (amountOut *big.Int, err error) {
	if !d.registry.IsExecutor(executor) {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownExecutor, executor.Hex())
	}

	impl, ok := d.code.CodeAt(executor)
	if !ok {
		metrics.RecordDispatch(executor, metrics.ResultFailed)
		return nil, &core.ExecutorCallFailedError{
			Executor: executor,
			Cause:    fmt.Errorf("%w: no code at executor address", core.ErrNotAContract),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[Dispatcher:Invoke] 执行器 panic: executor=%s amount=%s panic=%v\nstack: %s",
				executor.Hex(), amount, r, debug.Stack())
			amountOut = nil
			err = &core.ExecutorCallFailedError{Executor: executor, Cause: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			metrics.RecordDispatch(executor, metrics.ResultFailed)
		} else {
			metrics.RecordDispatch(executor, metrics.ResultOK)
		}
	}()

	out, callErr := impl.Swap(env, new(big.Int).Set(amount), data)
	if callErr != nil {
		logger.Warnf("[Dispatcher:Invoke] 执行器调用失败: executor=%s amount=%s err=%v",
			executor.Hex(), amount, callErr)
		return nil, &core.ExecutorCallFailedError{Executor: executor, Cause: callErr}
	}
	if out == nil || out.Sign() < 0 {
		return nil, &core.ExecutorCallFailedError{
			Executor: executor,
			Cause:    fmt.Errorf("invalid reported amount %v", out),
		}
	}
	logger.Debugf("[Dispatcher:Invoke] executor=%s amountIn=%s amountOut=%s", executor.Hex(), amount, out)
	return new(big.Int).Set(out), nil
}
