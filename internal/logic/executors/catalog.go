package executors

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/types"
)

var ErrAlreadyDeployed = errors.New("code already deployed at address")

type deployment struct {
	kind int
	impl core.Executor
}

// Catalog 地址 → 已部署执行器代码。
// 同时作为 registry 的代码检查器（HasCode）与 dispatcher 的代码解析器（CodeAt）。
type Catalog struct {
	mu   sync.RWMutex
	code map[types.Address]deployment
}

func NewCatalog() *Catalog {
	return &Catalog{code: make(map[types.Address]deployment)}
}

// Deploy 在 addr 上部署执行器，同一地址只能部署一次
func (c *Catalog) Deploy(addr types.Address, kind int, impl core.Executor) error {
	if impl == nil {
		return fmt.Errorf("deploy %s: nil executor", addr.Hex())
	}
	if addr == types.ZeroAddress {
		return errors.New("deploy: zero address")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.code[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDeployed, addr.Hex())
	}
	c.code[addr] = deployment{kind: kind, impl: impl}
	return nil
}

func (c *Catalog) CodeAt(addr types.Address) (core.Executor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.code[addr]
	return d.impl, ok
}

func (c *Catalog) HasCode(addr types.Address) bool {
	_, ok := c.CodeAt(addr)
	return ok
}

// KindAt 返回部署在 addr 上的执行器类型名
func (c *Catalog) KindAt(addr types.Address) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.code[addr]
	if !ok {
		return "", false
	}
	return consts.ExecutorName(d.kind), true
}

// Addresses 按地址字节序返回所有已部署地址
func (c *Catalog) Addresses() []types.Address {
	c.mu.RLock()
	out := make([]types.Address, 0, len(c.code))
	for addr := range c.code {
		out = append(out, addr)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b types.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
