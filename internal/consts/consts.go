package consts

const (
	ChainIDEthereum uint32 = 1
)

// FractionOne 表示 split 指令中 100% 的 24 位定点分数
const FractionOne uint32 = 0xFFFFFF

// 指令编码相关长度（字节）
const (
	LengthPrefixSize = 2
	AddressSize      = 20
	SlotIndexSize    = 1
	FractionSize     = 3

	// 单条指令体最大长度（2 字节长度前缀）
	MaxInstructionSize = 0xFFFF

	// split 指令头：in(1) + out(1) + fraction(3) + executor(20)
	SplitHeaderSize = SlotIndexSize*2 + FractionSize + AddressSize
)

// MaxSlotCount split 拓扑的 slot 下标为 1 字节
const MaxSlotCount = 256
