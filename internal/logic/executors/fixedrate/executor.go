package fixedrate

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

// ProtocolDataSize vault(20) + transferType(1)
const ProtocolDataSize = 21

var ErrInvalidProtocolData = errors.New("fixedrate: invalid protocol data")

type ProtocolData struct {
	Vault        [20]byte
	TransferType uint8
}

func EncodeProtocolData(vault types.Address, t transfer.Type) ([]byte, error) {
	return borsh.Serialize(ProtocolData{Vault: vault, TransferType: uint8(t)})
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

type VaultSource interface {
	Vault(addr types.Address) (*venue.Vault, bool)
}

// Executor 按 vault 的固定汇率兑换
type Executor struct {
	vaults VaultSource
}

func New(vaults VaultSource) *Executor {
	return &Executor{vaults: vaults}
}

func (e *Executor) Swap(env *core.Env, amountIn *big.Int, data []byte) (*big.Int, error) {
	pd, err := DecodeProtocolData(data)
	if err != nil {
		return nil, err
	}
	vault, ok := e.vaults.Vault(pd.Vault)
	if !ok {
		return nil, fmt.Errorf("fixedrate: unknown vault %s", types.Address(pd.Vault).Hex())
	}
	if amountIn.Sign() <= 0 {
		return nil, venue.ErrInsufficientInputAmount
	}

	if err = transfer.MoveInput(env, transfer.Type(pd.TransferType), vault.AssetIn(), amountIn, vault.Address()); err != nil {
		return nil, err
	}
	return vault.Fill(env.Self())
}
