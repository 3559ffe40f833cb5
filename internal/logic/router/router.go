package router

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime/debug"
	"sync"
	"time"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/logic/custody"
	"dex-router/internal/logic/dispatcher"
	"dex-router/internal/logic/guard"
	"dex-router/internal/logic/permit"
	"dex-router/internal/metrics"
	"dex-router/internal/types"
	"dex-router/pkg/logger"
)

// Invoker 校验准入并调用执行器（dispatcher.Dispatcher）
type Invoker interface {
	Invoke(env *core.Env, executor types.Address, amount *big.Int, data []byte) (*big.Int, error)
}

var _ Invoker = (*dispatcher.Dispatcher)(nil)

// Router 兑换编排器。每次顶层调用的状态机：
//
//	Init → WrapNative? → Execute → Verify → UnwrapNative? → Deliver
//
// 任一阶段失败即回滚到 Init 时打开的账本快照，授权记录在任何出口都会被清除。
// 同一 Router 上的调用串行执行。
type Router struct {
	mu         sync.Mutex
	self       types.Address
	ledger     *custody.Ledger
	native     *custody.NativeWrapper
	dispatcher Invoker
	permits    *permit.Service
}

// New native / permits 可为 nil，对应功能不可用
func New(self types.Address, ledger *custody.Ledger, native *custody.NativeWrapper, invoker Invoker, permits *permit.Service) *Router {
	return &Router{
		self:       self,
		ledger:     ledger,
		native:     native,
		dispatcher: invoker,
		permits:    permits,
	}
}

func (r *Router) Address() types.Address { return r.self }

// executeFunc 策略主体：以 amountIn 为输入执行 plan，返回候选产出
type executeFunc func(env *core.Env, amountIn *big.Int) (*big.Int, error)

func (r *Router) permitSource() guard.PermitSource {
	if r.permits == nil {
		return nil
	}
	return r.permits
}

// run 执行一次完整的顶层调用，slotCount 仅 split 策略使用
func (r *Router) run(ctx context.Context, strategy Strategy, slotCount int, p *SwapParams, pp *PermitParams, execute executeFunc) (amountOut *big.Int, err error) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		elapsed := time.Since(start)
		if err != nil {
			metrics.RecordSwap(strategy.String(), metrics.ResultFailed, elapsed)
			metrics.RecordSwapFailure(strategy.String(), FailureReason(err))
			logger.Warnf("[Router:%s] 调用失败，已回滚: caller=%s assetIn=%s amountIn=%s err=%v",
				strategy, p.Caller.Hex(), p.AssetIn.Hex(), p.AmountIn, err)
			return
		}
		metrics.RecordSwap(strategy.String(), metrics.ResultOK, elapsed)
		logger.Infof("[Router:%s] 兑换完成: caller=%s recipient=%s %s→%s amountIn=%s amountOut=%s cost=%v",
			strategy, p.Caller.Hex(), p.Recipient.Hex(), p.AssetIn.Hex(), p.AssetOut.Hex(), p.AmountIn, amountOut, elapsed)
	}()

	// 1. Init: 参数校验
	if err = p.validate(r.self, r.native != nil); err != nil {
		return nil, err
	}
	if strategy == StrategySplit {
		if err = checkSlotCount(slotCount); err != nil {
			return nil, err
		}
	}
	if pp != nil {
		if r.permits == nil {
			return nil, guard.ErrNoPermitService
		}
		if err = p.validatePermit(r.self, pp); err != nil {
			return nil, err
		}
	}

	snap := r.ledger.Snapshot()
	scope := guard.NewScope(p.Caller, r.self, r.ledger, r.permitSource())
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("[Router:%s] panic: %v\nstack: %s", strategy, rec, debug.Stack())
			err = fmt.Errorf("router panic: %v", rec)
		}
		scope.Close()
		if err != nil {
			r.ledger.RevertToSnapshot(snap)
			amountOut = nil
			return
		}
		r.ledger.Commit(snap)
	}()

	// 附带的原生资产先记入路由
	if value := p.value(); value.Sign() > 0 {
		if err = r.ledger.Transfer(consts.NativeAsset, p.Caller, r.self, value); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidNativeValue, err)
		}
	}

	// 登记本次调用允许拉取的额度
	if err = r.authorize(ctx, scope, p, pp); err != nil {
		return nil, err
	}

	// 2. WrapNative
	if p.WrapIn {
		if err = r.native.Wrap(r.self, p.AmountIn); err != nil {
			return nil, fmt.Errorf("wrap native: %w", err)
		}
	}

	// 3. Execute
	env := core.NewEnv(ctx, r.self, p.Caller, r.ledger, scope)
	candidate, err := execute(env, new(big.Int).Set(p.AmountIn))
	if err != nil {
		return nil, err
	}

	// 4. Verify
	if err = verify(candidate, p.MinOut); err != nil {
		return nil, err
	}

	// 5. UnwrapNative
	deliverAsset := p.AssetOut
	if p.UnwrapOut {
		if err = r.native.Unwrap(r.self, candidate); err != nil {
			return nil, fmt.Errorf("%w: unwrap %s: %v", core.ErrDeliveryShortfall, candidate, err)
		}
		deliverAsset = consts.NativeAsset
	}

	// 6. Deliver
	return r.deliver(deliverAsset, p.Recipient, candidate)
}

func (r *Router) authorize(ctx context.Context, scope *guard.Scope, p *SwapParams, pp *PermitParams) error {
	if pp != nil {
		if err := r.permits.Permit(ctx, pp.Authorization, pp.Signature); err != nil {
			return fmt.Errorf("permit: %w", err)
		}
		return scope.Record(p.AssetIn, p.AmountIn, guard.KindPermit)
	}
	if p.PullRequired {
		return scope.Record(p.AssetIn, p.AmountIn, guard.KindAllowance)
	}
	return nil
}

// verify minOut 已在 Init 保证为正；相等视为成功
func verify(candidate, minOut *big.Int) error {
	if minOut == nil || minOut.Sign() == 0 {
		return core.ErrUndefinedMinimumOutput
	}
	if candidate.Cmp(minOut) < 0 {
		return &core.NegativeSlippageError{
			Actual:  new(big.Int).Set(candidate),
			Minimum: new(big.Int).Set(minOut),
		}
	}
	return nil
}

// deliver 把 amount 转给 recipient，返回 recipient 实际到账的数量；
// 到账数量与 amount 不一致时失败
func (r *Router) deliver(asset, recipient types.Address, amount *big.Int) (*big.Int, error) {
	before := r.ledger.BalanceOf(asset, recipient)
	if err := r.ledger.Transfer(asset, r.self, recipient, amount); err != nil {
		return nil, fmt.Errorf("%w: deliver %s of %s: %v", core.ErrDeliveryShortfall, amount, asset.Hex(), err)
	}
	delivered := r.ledger.BalanceOf(asset, recipient)
	delivered.Sub(delivered, before)
	if delivered.Cmp(amount) != 0 {
		return nil, fmt.Errorf("%w: delivered %s, expected %s", core.ErrDeliveryShortfall, delivered, amount)
	}
	return delivered, nil
}

// FailureReason 错误对应的指标 / 回执原因标签
func FailureReason(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedPlan):
		return "malformed_plan"
	case errors.Is(err, core.ErrEmptyPlan):
		return "empty_plan"
	case errors.Is(err, core.ErrUnknownExecutor):
		return "unknown_executor"
	case errors.Is(err, core.ErrExceededAuthorization):
		return "exceeded_authorization"
	case errors.Is(err, core.ErrExecutorCallFailed):
		return "executor_call_failed"
	case errors.Is(err, core.ErrUndefinedMinimumOutput):
		return "undefined_minimum_output"
	case errors.Is(err, core.ErrNegativeSlippage):
		return "negative_slippage"
	case errors.Is(err, core.ErrInvalidParams):
		return "invalid_params"
	case errors.Is(err, core.ErrInvalidNativeValue):
		return "invalid_native_value"
	case errors.Is(err, core.ErrDeliveryShortfall):
		return "delivery_shortfall"
	default:
		return "other"
	}
}
