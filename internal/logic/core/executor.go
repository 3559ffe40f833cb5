package core

import (
	"context"
	"math/big"

	"dex-router/internal/types"
)

// Custody 是执行器可见的资产托管视图，所有余额变动都记在同一份账本上。
type Custody interface {
	BalanceOf(asset, owner types.Address) *big.Int
	Transfer(asset, from, to types.Address, amount *big.Int) error
}

// Puller 从调用方托管中拉取资金，受本次调用的授权记录约束。
type Puller interface {
	Consume(ctx context.Context, asset types.Address, amount *big.Int, to types.Address) error
}

// Executor 定义了单个流动性场所的兑换入口。
//
// 参数：
//   - env:      当前调用的执行环境（以路由自身身份持有资产）
//   - amountIn: 本条指令分配到的输入数量
//   - data:     协议数据，核心原样透传，不做任何解析
//
// 返回值：
//   - amountOut: 执行器声明的产出数量（记入路由托管）
type Executor interface {
	Swap(env *Env, amountIn *big.Int, data []byte) (*big.Int, error)
}

// ExecutorFunc 便于以函数形式实现 Executor
type ExecutorFunc func(env *Env, amountIn *big.Int, data []byte) (*big.Int, error)

func (f ExecutorFunc) Swap(env *Env, amountIn *big.Int, data []byte) (*big.Int, error) {
	return f(env, amountIn, data)
}

// Env 是执行器运行时拿到的路由身份句柄。
// 执行器做的所有资产移动都记在路由名下；拉取调用方资金只能经过 Puller（授权守卫）。
type Env struct {
	ctx     context.Context
	self    types.Address
	caller  types.Address
	custody Custody
	puller  Puller
}

func NewEnv(ctx context.Context, self, caller types.Address, custody Custody, puller Puller) *Env {
	return &Env{
		ctx:     ctx,
		self:    self,
		caller:  caller,
		custody: custody,
		puller:  puller,
	}
}

func (e *Env) Context() context.Context { return e.ctx }

// Self 路由自身地址
func (e *Env) Self() types.Address { return e.self }

// Caller 顶层调用方地址
func (e *Env) Caller() types.Address { return e.caller }

// Balance 路由当前持有的 asset 数量
func (e *Env) Balance(asset types.Address) *big.Int {
	return e.custody.BalanceOf(asset, e.self)
}

func (e *Env) BalanceOf(asset, owner types.Address) *big.Int {
	return e.custody.BalanceOf(asset, owner)
}

// Transfer 从路由托管转出
func (e *Env) Transfer(asset, to types.Address, amount *big.Int) error {
	return e.custody.Transfer(asset, e.self, to, amount)
}

// PullFromCaller 从调用方拉取资金直接转给 to，额度由授权守卫控制
func (e *Env) PullFromCaller(asset types.Address, amount *big.Int, to types.Address) error {
	return e.puller.Consume(e.ctx, asset, amount, to)
}
