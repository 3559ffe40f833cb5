package uniswapv2

import (
	"errors"
	"fmt"
	"math/big"

	"dex-router/internal/logic/core"
	"dex-router/internal/logic/executors/transfer"
	"dex-router/internal/logic/venue"
	"dex-router/internal/types"

	"github.com/near/borsh-go"
)

// ProtocolDataSize 协议数据定长：pair(20) + zeroForOne(1) + transferType(1)
const ProtocolDataSize = 22

var ErrInvalidProtocolData = errors.New("uniswapv2: invalid protocol data")

// ProtocolData borsh 编码
type ProtocolData struct {
	Pair         [20]byte
	ZeroForOne   bool
	TransferType uint8
}

func EncodeProtocolData(pair types.Address, zeroForOne bool, t transfer.Type) ([]byte, error) {
	return borsh.Serialize(ProtocolData{
		Pair:         pair,
		ZeroForOne:   zeroForOne,
		TransferType: uint8(t),
	})
}

func DecodeProtocolData(data []byte) (pd ProtocolData, err error) {
	if len(data) != ProtocolDataSize {
		return pd, fmt.Errorf("%w: got %d bytes, expect %d", ErrInvalidProtocolData, len(data), ProtocolDataSize)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidProtocolData, r)
		}
	}()
	if err = borsh.Deserialize(&pd, data); err != nil {
		return pd, fmt.Errorf("%w: %v", ErrInvalidProtocolData, err)
	}
	if !transfer.Type(pd.TransferType).Valid() {
		return pd, fmt.Errorf("%w: transfer type %d", ErrInvalidProtocolData, pd.TransferType)
	}
	return pd, nil
}

// PairSource 按地址查找 pair
type PairSource interface {
	Pair(addr types.Address) (*venue.Pair, bool)
}

// Executor 在常量乘积池上兑换，输出记入路由托管
type Executor struct {
	pairs PairSource
}

func New(pairs PairSource) *Executor {
	return &Executor{pairs: pairs}
}

func (e *Executor) Swap(env *core.Env, amountIn *big.Int, data []byte) (*big.Int, error) {
	pd, err := DecodeProtocolData(data)
	if err != nil {
		return nil, err
	}
	pair, ok := e.pairs.Pair(pd.Pair)
	if !ok {
		return nil, fmt.Errorf("uniswapv2: unknown pair %s", types.Address(pd.Pair).Hex())
	}

	r0, r1 := pair.Reserves()
	tokenIn, reserveIn, reserveOut := pair.Token0(), r0, r1
	if !pd.ZeroForOne {
		tokenIn, reserveIn, reserveOut = pair.Token1(), r1, r0
	}

	amountOut, err := venue.GetAmountOut(amountIn, reserveIn, reserveOut)
	if err != nil {
		return nil, err
	}

	if err = transfer.MoveInput(env, transfer.Type(pd.TransferType), tokenIn, amountIn, pair.Address()); err != nil {
		return nil, err
	}

	amount0Out, amount1Out := new(big.Int), amountOut
	if !pd.ZeroForOne {
		amount0Out, amount1Out = amountOut, new(big.Int)
	}
	if err = pair.Swap(amount0Out, amount1Out, env.Self()); err != nil {
		return nil, err
	}
	return amountOut, nil
}
