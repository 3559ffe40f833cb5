package fixedrate

import (
	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/types"
)

type Deployer interface {
	Deploy(addr types.Address, kind int, impl core.Executor) error
}

// RegisterExecutor 在 addr 上部署 FixedRate 执行器
func RegisterExecutor(d Deployer, addr types.Address, src VaultSource) error {
	return d.Deploy(addr, consts.ExecutorFixedRate, New(src))
}
