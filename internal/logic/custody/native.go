package custody

import (
	"math/big"

	"dex-router/internal/consts"
	"dex-router/internal/types"
)

// NativeWrapper 模拟 WETH：wrapped 地址托管原生资产，并 1:1 铸造 / 销毁包装资产
type NativeWrapper struct {
	ledger  *Ledger
	wrapped types.Address
}

func NewNativeWrapper(ledger *Ledger, wrapped types.Address) *NativeWrapper {
	return &NativeWrapper{ledger: ledger, wrapped: wrapped}
}

// Wrapped 包装资产地址
func (w *NativeWrapper) Wrapped() types.Address { return w.wrapped }

// Wrap owner 的原生资产转入包装合约，并给 owner 铸造等量包装资产
func (w *NativeWrapper) Wrap(owner types.Address, amount *big.Int) error {
	if err := w.ledger.Transfer(consts.NativeAsset, owner, w.wrapped, amount); err != nil {
		return err
	}
	return w.ledger.Mint(w.wrapped, owner, amount)
}

// Unwrap 销毁 owner 的包装资产，并从包装合约退回等量原生资产
func (w *NativeWrapper) Unwrap(owner types.Address, amount *big.Int) error {
	if err := w.ledger.Burn(w.wrapped, owner, amount); err != nil {
		return err
	}
	return w.ledger.Transfer(consts.NativeAsset, w.wrapped, owner, amount)
}
