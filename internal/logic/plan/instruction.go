package plan

import (
	"fmt"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/types"
)

// SequentialInstruction single / sequential 拓扑的指令
//
//	[ 20 bytes executor ] [ protocol data ... ]
type SequentialInstruction struct {
	Executor     types.Address
	ProtocolData []byte
}

// SplitInstruction split 拓扑的指令
//
//	[ 1 byte in slot ] [ 1 byte out slot ] [ 3 bytes fraction ] [ 20 bytes executor ] [ protocol data ... ]
//
// Fraction 为 0 表示分配输入 slot 当前剩余的全部余额
type SplitInstruction struct {
	InSlot       uint8
	OutSlot      uint8
	Fraction     uint32
	Executor     types.Address
	ProtocolData []byte
}

func ParseSequential(body []byte) (SequentialInstruction, error) {
	if len(body) < consts.AddressSize {
		return SequentialInstruction{}, core.MalformedPlanf("sequential instruction too short: %d bytes", len(body))
	}
	var ins SequentialInstruction
	copy(ins.Executor[:], body[:consts.AddressSize])
	ins.ProtocolData = body[consts.AddressSize:]
	return ins, nil
}

func ParseSplit(body []byte) (SplitInstruction, error) {
	if len(body) < consts.SplitHeaderSize {
		return SplitInstruction{}, core.MalformedPlanf("split instruction too short: %d bytes", len(body))
	}
	ins := SplitInstruction{
		InSlot:   body[0],
		OutSlot:  body[1],
		Fraction: uint32(body[2])<<16 | uint32(body[3])<<8 | uint32(body[4]),
	}
	copy(ins.Executor[:], body[5:consts.SplitHeaderSize])
	ins.ProtocolData = body[consts.SplitHeaderSize:]
	return ins, nil
}

// EncodeSequential 构造 sequential 指令体
func EncodeSequential(executor types.Address, data []byte) []byte {
	body := make([]byte, 0, consts.AddressSize+len(data))
	body = append(body, executor[:]...)
	return append(body, data...)
}

// EncodeSplit 构造 split 指令体，fraction 必须落在 24 位内
func EncodeSplit(in, out uint8, fraction uint32, executor types.Address, data []byte) ([]byte, error) {
	if fraction > consts.FractionOne {
		return nil, fmt.Errorf("fraction %#x exceeds 24 bits", fraction)
	}
	body := make([]byte, 0, consts.SplitHeaderSize+len(data))
	body = append(body, in, out, byte(fraction>>16), byte(fraction>>8), byte(fraction))
	body = append(body, executor[:]...)
	return append(body, data...), nil
}

// FractionFromPercent 把百分比（0, 100] 换算为 24 位定点分数，向下取整
func FractionFromPercent(percent float64) (uint32, error) {
	if percent <= 0 || percent > 100 {
		return 0, fmt.Errorf("percent %v out of range (0, 100]", percent)
	}
	f := uint32(percent / 100 * float64(consts.FractionOne))
	if f == 0 {
		return 0, fmt.Errorf("percent %v rounds to zero fraction", percent)
	}
	return f, nil
}
