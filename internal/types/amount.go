package types

import (
	"fmt"
	"math/big"
)

// NewAmount 拷贝一份，调用方之间不共享底层 big.Int
func NewAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// ParseAmount 解析十进制字符串
func ParseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// MustAmount 用于配置 / 测试，非法输入 panic
func MustAmount(s string) *big.Int {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

// AmountToBytes / AmountFromBytes 用于 borsh 编码（big-endian，无符号）
func AmountToBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}

func AmountFromBytes(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
