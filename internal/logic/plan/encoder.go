package plan

import (
	"encoding/binary"
	"fmt"

	"dex-router/internal/consts"
)

// Encode 把指令体按长度前缀拼接成 plan
func Encode(bodies [][]byte) ([]byte, error) {
	size := 0
	for i, body := range bodies {
		if len(body) > consts.MaxInstructionSize {
			return nil, fmt.Errorf("instruction %d too large: %d bytes (max %d)", i, len(body), consts.MaxInstructionSize)
		}
		size += consts.LengthPrefixSize + len(body)
	}

	buf := make([]byte, 0, size)
	for _, body := range bodies {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(body)))
		buf = append(buf, body...)
	}
	return buf, nil
}

// MustEncode 用于测试与工具
func MustEncode(bodies ...[]byte) []byte {
	buf, err := Encode(bodies)
	if err != nil {
		panic(err)
	}
	return buf
}
