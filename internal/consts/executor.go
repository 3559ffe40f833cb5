package consts

// 内置执行器类型
const (
	ExecutorUniswapV2 = iota + 1 // 1
	ExecutorFixedRate            // 2
)

var ExecutorNames = []string{
	"Unknown",   // 0 (保留)
	"UniswapV2", // 1
	"FixedRate", // 2
}

func ExecutorName(kind int) string {
	if kind >= 1 && kind < len(ExecutorNames) {
		return ExecutorNames[kind]
	}
	return ExecutorNames[0] // Unknown
}

// ExecutorKindByName 配置中按名称引用执行器类型，未知名称返回 0
func ExecutorKindByName(name string) int {
	for i := 1; i < len(ExecutorNames); i++ {
		if ExecutorNames[i] == name {
			return i
		}
	}
	return 0
}
