package fixedrate

import (
	"context"
	"math/big"
	"testing"

	"dex-router/internal/logic/core"
	"dex-router/internal/logic/custody"
	"dex-router/internal/logic/executors/transfer"
	"dex-router/internal/logic/guard"
	"dex-router/internal/logic/venue"
	"dex-router/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenX    = types.AddressFromHex("0x00000000000000000000000000000000000000a1")
	tokenY    = types.AddressFromHex("0x00000000000000000000000000000000000000b2")
	vaultAddr = types.AddressFromHex("0x0000000000000000000000000000000000000d01")
	caller    = types.AddressFromHex("0x00000000000000000000000000000000000a11ce")
	router    = types.AddressFromHex("0x00000000000000000000000000000000000000ff")
)

func TestFixedRateSwap(t *testing.T) {
	l := custody.NewLedger()
	v, err := venue.NewVault(l, vaultAddr, tokenX, tokenY, big.NewInt(3), big.NewInt(2))
	require.NoError(t, err)
	require.NoError(t, l.Mint(tokenY, vaultAddr, big.NewInt(1_000)))
	book := venue.NewBook()
	book.AddVault(v)

	require.NoError(t, l.Mint(tokenX, router, big.NewInt(100)))
	env := core.NewEnv(context.Background(), router, caller, l, guard.NewScope(caller, router, l, nil))

	data, err := EncodeProtocolData(vaultAddr, transfer.FromRouter)
	require.NoError(t, err)
	require.Len(t, data, ProtocolDataSize)

	out, err := New(book).Swap(env, big.NewInt(100), data)
	require.NoError(t, err)
	assert.Equal(t, int64(150), out.Int64())
	assert.Equal(t, int64(150), l.BalanceOf(tokenY, router).Int64())
	assert.Equal(t, int64(100), l.BalanceOf(tokenX, vaultAddr).Int64())

	_, err = New(book).Swap(env, big.NewInt(0), data)
	assert.ErrorIs(t, err, venue.ErrInsufficientInputAmount)

	_, err = DecodeProtocolData([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidProtocolData)
}
