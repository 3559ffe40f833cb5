package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Address 资产 / 执行器 / 账户地址（20 字节）
type Address = common.Address

// ZeroAddress 同时也表示链上原生资产
var ZeroAddress = Address{}

// TryAddressFromHex 解析 0x 前缀的 hex 地址，失败时返回 error（用于不信任输入路径）
func TryAddressFromHex(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// AddressFromHex 用于常量 / 配置，非法输入直接 panic
func AddressFromHex(s string) Address {
	addr, err := TryAddressFromHex(s)
	if err != nil {
		panic(err)
	}
	return addr
}

func AddressesFromHex(strs []string) []Address {
	result := make([]Address, 0, len(strs))
	for _, s := range strs {
		result = append(result, AddressFromHex(s))
	}
	return result
}
