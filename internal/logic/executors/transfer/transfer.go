package transfer

import (
	"fmt"
	"math/big"

	"dex-router/internal/logic/core"
	"dex-router/internal/types"
)

// Type 执行器协议数据中声明的输入资金来源
type Type uint8

const (
	FromCaller Type = iota // 经授权守卫从调用方拉取
	FromRouter             // 从路由托管转出
	None                   // 资金已在场所中
)

func (t Type) String() string {
	switch t {
	case FromCaller:
		return "from_caller"
	case FromRouter:
		return "from_router"
	case None:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t Type) Valid() bool { return t <= None }

// ParseType 按 String() 的名称解析
func ParseType(name string) (Type, error) {
	for t := FromCaller; t <= None; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transfer type %q", name)
}

// MoveInput 把本条指令的输入资金送到 to
func MoveInput(env *core.Env, t Type, asset types.Address, amount *big.Int, to types.Address) error {
	switch t {
	case FromCaller:
		return env.PullFromCaller(asset, amount, to)
	case FromRouter:
		return env.Transfer(asset, to, amount)
	case None:
		return nil
	default:
		return fmt.Errorf("unsupported transfer type %d", uint8(t))
	}
}
