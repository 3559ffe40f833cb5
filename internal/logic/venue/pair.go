package venue

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dex-router/internal/logic/custody"
	"dex-router/internal/types"
)

var (
	ErrInsufficientOutputAmount = errors.New("pair: insufficient output amount")
	ErrInsufficientInputAmount  = errors.New("pair: insufficient input amount")
	ErrInsufficientLiquidity    = errors.New("pair: insufficient liquidity")
	ErrInvalidTo                = errors.New("pair: invalid to")
	ErrK                        = errors.New("pair: K")
	ErrIdenticalTokens          = errors.New("pair: identical tokens")
)

var (
	feeDenominator = big.NewInt(1000)
	feeNumerator   = big.NewInt(997)
	feeInput       = big.NewInt(3)
)

// Pair 常量乘积池（Uniswap V2 语义，0.3% 手续费）。
// 池子资产记在 ledger 上 address 名下，reserve 为最近一次同步的缓存，
// 实际转入量 = 当前余额 - reserve。
type Pair struct {
	mu       sync.Mutex
	ledger   *custody.Ledger
	address  types.Address
	token0   types.Address
	token1   types.Address
	reserve0 *big.Int
	reserve1 *big.Int
}

// NewPair token 按地址字节序排序，较小者为 token0
func NewPair(ledger *custody.Ledger, address, tokenA, tokenB types.Address) (*Pair, error) {
	if tokenA == tokenB {
		return nil, ErrIdenticalTokens
	}
	token0, token1 := tokenA, tokenB
	if bytes.Compare(tokenA[:], tokenB[:]) > 0 {
		token0, token1 = tokenB, tokenA
	}
	return &Pair{
		ledger:   ledger,
		address:  address,
		token0:   token0,
		token1:   token1,
		reserve0: new(big.Int),
		reserve1: new(big.Int),
	}, nil
}

func (p *Pair) Address() types.Address { return p.address }
func (p *Pair) Token0() types.Address  { return p.token0 }
func (p *Pair) Token1() types.Address  { return p.token1 }

// Reserves 返回 reserve 副本
func (p *Pair) Reserves() (*big.Int, *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.reserve0), new(big.Int).Set(p.reserve1)
}

// ReservesFor 按输入 token 返回 (reserveIn, reserveOut)
func (p *Pair) ReservesFor(tokenIn types.Address) (*big.Int, *big.Int, error) {
	r0, r1 := p.Reserves()
	switch tokenIn {
	case p.token0:
		return r0, r1, nil
	case p.token1:
		return r1, r0, nil
	default:
		return nil, nil, fmt.Errorf("pair %s does not trade %s", p.address.Hex(), tokenIn.Hex())
	}
}

// Sync 用池子当前余额覆盖 reserve
func (p *Pair) Sync() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateUnsafe(
		p.ledger.BalanceOf(p.token0, p.address),
		p.ledger.BalanceOf(p.token1, p.address),
	)
}

// Swap 输出 amount0Out / amount1Out 到 to，输入需提前转入池子。
// 扣除手续费后的余额乘积不得小于交易前的 reserve 乘积。
func (p *Pair) Swap(amount0Out, amount1Out *big.Int, to types.Address) error {
	if amount0Out == nil {
		amount0Out = new(big.Int)
	}
	if amount1Out == nil {
		amount1Out = new(big.Int)
	}
	if amount0Out.Sign() < 0 || amount1Out.Sign() < 0 {
		return ErrInsufficientOutputAmount
	}
	if amount0Out.Sign() == 0 && amount1Out.Sign() == 0 {
		return ErrInsufficientOutputAmount
	}
	if to == p.token0 || to == p.token1 || to == p.address {
		return ErrInvalidTo
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if amount0Out.Cmp(p.reserve0) >= 0 || amount1Out.Cmp(p.reserve1) >= 0 {
		return ErrInsufficientLiquidity
	}

	if amount0Out.Sign() > 0 {
		if err := p.ledger.Transfer(p.token0, p.address, to, amount0Out); err != nil {
			return fmt.Errorf("pair: transfer token0 out: %w", err)
		}
	}
	if amount1Out.Sign() > 0 {
		if err := p.ledger.Transfer(p.token1, p.address, to, amount1Out); err != nil {
			return fmt.Errorf("pair: transfer token1 out: %w", err)
		}
	}

	balance0 := p.ledger.BalanceOf(p.token0, p.address)
	balance1 := p.ledger.BalanceOf(p.token1, p.address)

	amount0In := inputAmount(balance0, p.reserve0, amount0Out)
	amount1In := inputAmount(balance1, p.reserve1, amount1Out)
	if amount0In.Sign() == 0 && amount1In.Sign() == 0 {
		return ErrInsufficientInputAmount
	}

	// (b0*1000 - in0*3) * (b1*1000 - in1*3) >= r0 * r1 * 1000^2
	adjusted0 := new(big.Int).Mul(balance0, feeDenominator)
	adjusted0.Sub(adjusted0, new(big.Int).Mul(amount0In, feeInput))
	adjusted1 := new(big.Int).Mul(balance1, feeDenominator)
	adjusted1.Sub(adjusted1, new(big.Int).Mul(amount1In, feeInput))

	left := new(big.Int).Mul(adjusted0, adjusted1)
	right := new(big.Int).Mul(p.reserve0, p.reserve1)
	right.Mul(right, feeDenominator)
	right.Mul(right, feeDenominator)
	if left.Cmp(right) < 0 {
		return ErrK
	}

	p.updateUnsafe(balance0, balance1)
	return nil
}

// updateUnsafe 更新 reserve，旧值登记到账本日志，随调用一起回滚
func (p *Pair) updateUnsafe(balance0, balance1 *big.Int) {
	prev0, prev1 := p.reserve0, p.reserve1
	p.reserve0 = balance0
	p.reserve1 = balance1
	p.ledger.AppendUndo(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.reserve0 = prev0
		p.reserve1 = prev1
	})
}

// inputAmount = balance - (reserve - out)，不足时为 0
func inputAmount(balance, reserve, out *big.Int) *big.Int {
	expected := new(big.Int).Sub(reserve, out)
	if balance.Cmp(expected) <= 0 {
		return new(big.Int)
	}
	return expected.Sub(balance, expected)
}

// GetAmountOut 给定输入数量与储备，计算扣除 0.3% 手续费后的输出数量
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientInputAmount
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}
	amountInWithFee := new(big.Int).Mul(amountIn, feeNumerator)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, feeDenominator)
	denominator.Add(denominator, amountInWithFee)
	return numerator.Quo(numerator, denominator), nil
}
