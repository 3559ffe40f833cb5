package core

import (
	"errors"
	"fmt"
	"math/big"

	"dex-router/internal/types"
)

// 路由引擎的错误分类，全部为致命错误：任一出现即整笔调用回滚，不做内部重试
var (
	ErrMalformedPlan          = errors.New("malformed plan")
	ErrEmptyPlan              = errors.New("empty plan")
	ErrUnknownExecutor        = errors.New("unknown executor")
	ErrNotAContract           = errors.New("not a contract")
	ErrExecutorCallFailed     = errors.New("executor call failed")
	ErrExceededAuthorization  = errors.New("exceeded authorization")
	ErrUndefinedMinimumOutput = errors.New("undefined minimum output")
	ErrNegativeSlippage       = errors.New("negative slippage")

	ErrInvalidParams      = errors.New("invalid swap params")
	ErrInvalidNativeValue = errors.New("invalid native value")
	ErrDeliveryShortfall  = errors.New("delivery shortfall")
)

// ExecutorCallFailedError 执行器执行失败，Cause 保留原始错误供诊断
type ExecutorCallFailedError struct {
	Executor types.Address
	Cause    error
}

func (e *ExecutorCallFailedError) Error() string {
	return fmt.Sprintf("executor call failed: executor=%s: %v", e.Executor.Hex(), e.Cause)
}

func (e *ExecutorCallFailedError) Is(target error) bool { return target == ErrExecutorCallFailed }

func (e *ExecutorCallFailedError) Unwrap() error { return e.Cause }

// ExceededAuthorizationError 指令尝试拉取的数量超过本次调用授权的剩余额度
type ExceededAuthorizationError struct {
	Asset     types.Address
	Allowed   *big.Int
	Attempted *big.Int
}

func (e *ExceededAuthorizationError) Error() string {
	return fmt.Sprintf("exceeded authorization: asset=%s allowed=%s attempted=%s",
		e.Asset.Hex(), e.Allowed, e.Attempted)
}

func (e *ExceededAuthorizationError) Is(target error) bool { return target == ErrExceededAuthorization }

// NegativeSlippageError 实际产出低于调用方给出的最小产出
type NegativeSlippageError struct {
	Actual  *big.Int
	Minimum *big.Int
}

func (e *NegativeSlippageError) Error() string {
	return fmt.Sprintf("negative slippage: actual=%s minimum=%s", e.Actual, e.Minimum)
}

func (e *NegativeSlippageError) Is(target error) bool { return target == ErrNegativeSlippage }

// MalformedPlanf 构造带上下文的 MalformedPlan 错误
func MalformedPlanf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedPlan, fmt.Sprintf(format, args...))
}

// InvalidParamsf 构造带上下文的参数错误
func InvalidParamsf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParams, fmt.Sprintf(format, args...))
}
