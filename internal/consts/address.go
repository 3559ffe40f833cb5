package consts

import "dex-router/internal/types"

// Hex 地址常量（可读性高，适合配置与日志使用）
const (
	// 原生资产用零地址表示
	NativeAssetStr = "0x0000000000000000000000000000000000000000"

	// 主网 WETH，模拟环境中可通过配置覆盖
	WrappedNativeStr = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
)

var (
	NativeAsset   = types.AddressFromHex(NativeAssetStr)
	WrappedNative = types.AddressFromHex(WrappedNativeStr)
)

// IsNative 判断资产是否为链上原生资产
func IsNative(asset types.Address) bool {
	return asset == NativeAsset
}
