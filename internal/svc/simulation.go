package svc

import (
	"fmt"

	"dex-router/internal/config"
	"dex-router/internal/logic/custody"
	"dex-router/internal/logic/executors"
	"dex-router/internal/logic/venue"
	"dex-router/internal/types"
)

// Simulation 内存中的链上状态：托管账本、场所与执行器部署
type Simulation struct {
	Ledger  *custody.Ledger
	Book    *venue.Book
	Catalog *executors.Catalog
	Admit   []types.Address // 启动时需要加入 registry 的执行器
}

// BuildSimulation 按配置初始化托管余额、授权、场所与执行器
func BuildSimulation(c *config.SimulationConfig) (*Simulation, error) {
	sim := &Simulation{
		Ledger:  custody.NewLedger(),
		Book:    venue.NewBook(),
		Catalog: executors.NewCatalog(),
	}

	for i, b := range c.Balances {
		asset, owner, err := parsePair(b.Asset, b.Owner)
		if err != nil {
			return nil, fmt.Errorf("balance[%d]: %w", i, err)
		}
		amount, err := types.ParseAmount(b.Amount)
		if err != nil {
			return nil, fmt.Errorf("balance[%d]: %w", i, err)
		}
		if err := sim.Ledger.Mint(asset, owner, amount); err != nil {
			return nil, fmt.Errorf("balance[%d]: %w", i, err)
		}
	}

	for i, a := range c.Allowances {
		asset, owner, err := parsePair(a.Asset, a.Owner)
		if err != nil {
			return nil, fmt.Errorf("allowance[%d]: %w", i, err)
		}
		spender, err := types.TryAddressFromHex(a.Spender)
		if err != nil {
			return nil, fmt.Errorf("allowance[%d]: spender: %w", i, err)
		}
		amount, err := types.ParseAmount(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("allowance[%d]: %w", i, err)
		}
		if err := sim.Ledger.Approve(asset, owner, spender, amount); err != nil {
			return nil, fmt.Errorf("allowance[%d]: %w", i, err)
		}
	}

	for i := range c.Pairs {
		if err := sim.addPair(&c.Pairs[i]); err != nil {
			return nil, fmt.Errorf("pair[%d]: %w", i, err)
		}
	}
	for i := range c.Vaults {
		if err := sim.addVault(&c.Vaults[i]); err != nil {
			return nil, fmt.Errorf("vault[%d]: %w", i, err)
		}
	}

	deployments := make([]executors.Deployment, 0, len(c.Executors))
	for i := range c.Executors {
		e := &c.Executors[i]
		addr, err := types.TryAddressFromHex(e.Address)
		if err != nil {
			return nil, fmt.Errorf("executor[%d]: %w", i, err)
		}
		kind, err := e.KindValue()
		if err != nil {
			return nil, fmt.Errorf("executor[%d]: %w", i, err)
		}
		deployments = append(deployments, executors.Deployment{Address: addr, Kind: kind})
		if e.Admit {
			sim.Admit = append(sim.Admit, addr)
		}
	}
	if err := executors.RegisterExecutors(sim.Catalog, sim.Book, deployments); err != nil {
		return nil, err
	}
	return sim, nil
}

// addPair 铸造初始储备到池子地址后 Sync
func (s *Simulation) addPair(c *config.PairConfig) error {
	addr, err := types.TryAddressFromHex(c.Address)
	if err != nil {
		return err
	}
	tokenA, tokenB, err := parsePair(c.TokenA, c.TokenB)
	if err != nil {
		return err
	}
	reserveA, err := types.ParseAmount(c.ReserveA)
	if err != nil {
		return err
	}
	reserveB, err := types.ParseAmount(c.ReserveB)
	if err != nil {
		return err
	}

	pair, err := venue.NewPair(s.Ledger, addr, tokenA, tokenB)
	if err != nil {
		return err
	}
	if err := s.Ledger.Mint(tokenA, addr, reserveA); err != nil {
		return err
	}
	if err := s.Ledger.Mint(tokenB, addr, reserveB); err != nil {
		return err
	}
	pair.Sync()
	s.Book.AddPair(pair)
	return nil
}

func (s *Simulation) addVault(c *config.VaultConfig) error {
	addr, err := types.TryAddressFromHex(c.Address)
	if err != nil {
		return err
	}
	assetIn, assetOut, err := parsePair(c.AssetIn, c.AssetOut)
	if err != nil {
		return err
	}
	rateNum, err := types.ParseAmount(c.RateNum)
	if err != nil {
		return err
	}
	rateDen, err := types.ParseAmount(c.RateDen)
	if err != nil {
		return err
	}

	vault, err := venue.NewVault(s.Ledger, addr, assetIn, assetOut, rateNum, rateDen)
	if err != nil {
		return err
	}
	if c.Inventory != "" {
		inventory, err := types.ParseAmount(c.Inventory)
		if err != nil {
			return err
		}
		if err := s.Ledger.Mint(assetOut, addr, inventory); err != nil {
			return err
		}
	}
	s.Book.AddVault(vault)
	return nil
}

func parsePair(a, b string) (types.Address, types.Address, error) {
	x, err := types.TryAddressFromHex(a)
	if err != nil {
		return types.Address{}, types.Address{}, err
	}
	y, err := types.TryAddressFromHex(b)
	if err != nil {
		return types.Address{}, types.Address{}, err
	}
	return x, y, nil
}
