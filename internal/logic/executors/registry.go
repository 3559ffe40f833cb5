package executors

import (
	"fmt"

	"dex-router/internal/consts"
	"dex-router/internal/logic/executors/fixedrate"
	"dex-router/internal/logic/executors/uniswapv2"
	"dex-router/internal/logic/venue"
	"dex-router/internal/types"
)

// Deployment 一个内置执行器的部署位置
type Deployment struct {
	Address types.Address
	Kind    int // consts.ExecutorXxx
}

// RegisterExecutors 按部署列表把内置执行器部署到 catalog
func RegisterExecutors(c *Catalog, book *venue.Book, deployments []Deployment) error {
	for _, d := range deployments {
		var err error
		switch d.Kind {
		case consts.ExecutorUniswapV2:
			err = uniswapv2.RegisterExecutor(c, d.Address, book)
		case consts.ExecutorFixedRate:
			err = fixedrate.RegisterExecutor(c, d.Address, book)
		default:
			err = fmt.Errorf("unknown executor kind %d", d.Kind)
		}
		if err != nil {
			return fmt.Errorf("register executor %s (%s): %w", d.Address.Hex(), consts.ExecutorName(d.Kind), err)
		}
	}
	return nil
}
