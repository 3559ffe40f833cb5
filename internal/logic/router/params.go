package router

import (
	"fmt"
	"math/big"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/logic/permit"
	"dex-router/internal/types"
)

// Strategy 顶层执行策略
type Strategy uint8

const (
	StrategySingle Strategy = iota + 1
	StrategySequential
	StrategySplit
)

func (s Strategy) String() string {
	switch s {
	case StrategySingle:
		return "single"
	case StrategySequential:
		return "sequential"
	case StrategySplit:
		return "split"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseStrategy 按名称解析策略，未知名称返回 0
func ParseStrategy(name string) Strategy {
	for _, s := range []Strategy{StrategySingle, StrategySequential, StrategySplit} {
		if s.String() == name {
			return s
		}
	}
	return 0
}

// SwapParams 一次顶层调用的参数
type SwapParams struct {
	AmountIn  *big.Int
	AssetIn   types.Address
	AssetOut  types.Address
	MinOut    *big.Int
	WrapIn    bool // 输入为原生资产时先包装
	UnwrapOut bool // 输出为原生资产时交付前解包
	Recipient types.Address
	Caller    types.Address
	Value     *big.Int // 随调用附带的原生资产数量
	// PullRequired 为 true 时由执行器经授权守卫从调用方拉取输入，
	// 否则输入需已在路由托管中（或随 Value 附带）
	PullRequired bool
	Plan         []byte
}

// PermitParams 签名预授权，代替调用方事先给路由的 allowance
type PermitParams struct {
	Authorization permit.Authorization
	Signature     []byte
}

func (p *SwapParams) value() *big.Int {
	if p.Value == nil {
		return new(big.Int)
	}
	return p.Value
}

// validate 在 Init 阶段完成的全部参数检查，不触碰任何状态
func (p *SwapParams) validate(self types.Address, canWrap bool) error {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return core.InvalidParamsf("amountIn must be positive, got %v", p.AmountIn)
	}
	if p.MinOut == nil || p.MinOut.Sign() == 0 {
		return core.ErrUndefinedMinimumOutput
	}
	if p.MinOut.Sign() < 0 {
		return core.InvalidParamsf("negative minOut %s", p.MinOut)
	}
	if p.Caller == types.ZeroAddress {
		return core.InvalidParamsf("zero caller")
	}
	if p.Recipient == types.ZeroAddress || p.Recipient == self {
		return core.InvalidParamsf("invalid recipient %s", p.Recipient.Hex())
	}
	if len(p.Plan) == 0 {
		return core.ErrEmptyPlan
	}
	if p.Value != nil && p.Value.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", core.ErrInvalidNativeValue, p.Value)
	}

	nativeIn := consts.IsNative(p.AssetIn)
	if (p.WrapIn || p.UnwrapOut) && !canWrap {
		return core.InvalidParamsf("native wrapping is not configured")
	}
	if p.WrapIn && !nativeIn {
		return core.InvalidParamsf("wrapIn requires native assetIn, got %s", p.AssetIn.Hex())
	}
	if p.UnwrapOut && !consts.IsNative(p.AssetOut) {
		return core.InvalidParamsf("unwrapOut requires native assetOut, got %s", p.AssetOut.Hex())
	}
	if nativeIn {
		if p.PullRequired {
			return core.InvalidParamsf("native assetIn cannot be pulled")
		}
		if p.value().Cmp(p.AmountIn) != 0 {
			return fmt.Errorf("%w: value %s != amountIn %s", core.ErrInvalidNativeValue, p.value(), p.AmountIn)
		}
	} else if p.value().Sign() != 0 {
		return fmt.Errorf("%w: value %s attached to non-native assetIn", core.ErrInvalidNativeValue, p.value())
	}
	return nil
}

// validatePermit 授权必须出自调用方、针对输入资产与路由本身，且额度覆盖 amountIn
func (p *SwapParams) validatePermit(self types.Address, pp *PermitParams) error {
	a := pp.Authorization
	if a.Owner != p.Caller {
		return core.InvalidParamsf("permit owner %s is not caller %s", a.Owner.Hex(), p.Caller.Hex())
	}
	if a.Asset != p.AssetIn {
		return core.InvalidParamsf("permit asset %s is not assetIn %s", a.Asset.Hex(), p.AssetIn.Hex())
	}
	if a.Spender != self {
		return core.InvalidParamsf("permit spender %s is not router", a.Spender.Hex())
	}
	if a.Amount == nil || a.Amount.Cmp(p.AmountIn) < 0 {
		return core.InvalidParamsf("permit amount %v below amountIn %s", a.Amount, p.AmountIn)
	}
	if consts.IsNative(p.AssetIn) {
		return core.InvalidParamsf("native assetIn cannot be permitted")
	}
	return nil
}
