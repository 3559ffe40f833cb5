package venue

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"dex-router/internal/logic/custody"
	"dex-router/internal/types"
)

var (
	ErrInvalidRate       = errors.New("vault: invalid rate")
	ErrNothingDeposited  = errors.New("vault: nothing deposited")
	ErrVaultInsufficient = errors.New("vault: insufficient inventory")
)

// Vault 固定汇率做市（RFQ 式）：单向 assetIn → assetOut，out = in * rateNum / rateDen。
// 与 Pair 一样按"当前余额 - 已记账输入"识别转入量。
type Vault struct {
	mu        sync.Mutex
	ledger    *custody.Ledger
	address   types.Address
	assetIn   types.Address
	assetOut  types.Address
	rateNum   *big.Int
	rateDen   *big.Int
	accounted *big.Int
}

func NewVault(ledger *custody.Ledger, address, assetIn, assetOut types.Address, rateNum, rateDen *big.Int) (*Vault, error) {
	if assetIn == assetOut {
		return nil, ErrIdenticalTokens
	}
	if rateNum == nil || rateDen == nil || rateNum.Sign() <= 0 || rateDen.Sign() <= 0 {
		return nil, ErrInvalidRate
	}
	return &Vault{
		ledger:    ledger,
		address:   address,
		assetIn:   assetIn,
		assetOut:  assetOut,
		rateNum:   new(big.Int).Set(rateNum),
		rateDen:   new(big.Int).Set(rateDen),
		accounted: ledger.BalanceOf(assetIn, address),
	}, nil
}

func (v *Vault) Address() types.Address  { return v.address }
func (v *Vault) AssetIn() types.Address  { return v.assetIn }
func (v *Vault) AssetOut() types.Address { return v.assetOut }

// Quote 按固定汇率计算输出，向下取整
func (v *Vault) Quote(amountIn *big.Int) *big.Int {
	out := new(big.Int).Mul(amountIn, v.rateNum)
	return out.Quo(out, v.rateDen)
}

// Fill 将新转入的 assetIn 按汇率兑换为 assetOut 转给 to，返回输出数量
func (v *Vault) Fill(to types.Address) (*big.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	balance := v.ledger.BalanceOf(v.assetIn, v.address)
	deposited := new(big.Int).Sub(balance, v.accounted)
	if deposited.Sign() <= 0 {
		return nil, ErrNothingDeposited
	}

	out := v.Quote(deposited)
	if out.Sign() == 0 {
		return nil, fmt.Errorf("%w: deposit %s below one unit", ErrInsufficientOutputAmount, deposited)
	}
	if inventory := v.ledger.BalanceOf(v.assetOut, v.address); inventory.Cmp(out) < 0 {
		return nil, fmt.Errorf("%w: have %s, need %s", ErrVaultInsufficient, inventory, out)
	}
	if err := v.ledger.Transfer(v.assetOut, v.address, to, out); err != nil {
		return nil, fmt.Errorf("vault: transfer out: %w", err)
	}

	prev := v.accounted
	v.accounted = balance
	v.ledger.AppendUndo(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.accounted = prev
	})
	return out, nil
}
