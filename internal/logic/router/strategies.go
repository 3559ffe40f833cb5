package router

import (
	"context"
	"fmt"
	"math/big"

	"dex-router/internal/consts"
	"dex-router/internal/logic/core"
	"dex-router/internal/logic/plan"
	"dex-router/internal/logic/splitledger"
)

// ExecuteSingle plan 必须恰好包含一条指令，以全部输入调用一次
func (r *Router) ExecuteSingle(ctx context.Context, p SwapParams) (*big.Int, error) {
	return r.run(ctx, StrategySingle, 0, &p, nil, r.single(p.Plan))
}

// ExecuteSequential 逐条执行，上一条的产出作为下一条的输入
func (r *Router) ExecuteSequential(ctx context.Context, p SwapParams) (*big.Int, error) {
	return r.run(ctx, StrategySequential, 0, &p, nil, r.sequential(p.Plan))
}

// ExecuteSplit 在 slotCount 个 slot 上按分数拆分执行，slot slotCount-1 为终点
func (r *Router) ExecuteSplit(ctx context.Context, p SwapParams, slotCount int) (*big.Int, error) {
	return r.run(ctx, StrategySplit, slotCount, &p, nil, r.split(p.Plan, slotCount))
}

func (r *Router) ExecuteSinglePermit(ctx context.Context, p SwapParams, pp PermitParams) (*big.Int, error) {
	p.PullRequired = true
	return r.run(ctx, StrategySingle, 0, &p, &pp, r.single(p.Plan))
}

func (r *Router) ExecuteSequentialPermit(ctx context.Context, p SwapParams, pp PermitParams) (*big.Int, error) {
	p.PullRequired = true
	return r.run(ctx, StrategySequential, 0, &p, &pp, r.sequential(p.Plan))
}

func (r *Router) ExecuteSplitPermit(ctx context.Context, p SwapParams, slotCount int, pp PermitParams) (*big.Int, error) {
	p.PullRequired = true
	return r.run(ctx, StrategySplit, slotCount, &p, &pp, r.split(p.Plan, slotCount))
}

func checkSlotCount(slotCount int) error {
	if slotCount < 2 || slotCount > consts.MaxSlotCount {
		return core.InvalidParamsf("slot count %d out of range [2, %d]", slotCount, consts.MaxSlotCount)
	}
	return nil
}

func (r *Router) single(buf []byte) executeFunc {
	return func(env *core.Env, amountIn *big.Int) (*big.Int, error) {
		bodies, err := plan.Bodies(buf)
		if err != nil {
			return nil, err
		}
		if len(bodies) != 1 {
			return nil, core.InvalidParamsf("single plan must hold exactly one instruction, got %d", len(bodies))
		}
		ins, err := plan.ParseSequential(bodies[0])
		if err != nil {
			return nil, err
		}
		return r.dispatcher.Invoke(env, ins.Executor, amountIn, ins.ProtocolData)
	}
}

func (r *Router) sequential(buf []byte) executeFunc {
	return func(env *core.Env, amountIn *big.Int) (*big.Int, error) {
		amount := amountIn
		it := plan.Decode(buf)
		for {
			body, ok := it.Next()
			if !ok {
				break
			}
			ins, err := plan.ParseSequential(body)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", it.Index()-1, err)
			}
			if amount, err = r.dispatcher.Invoke(env, ins.Executor, amount, ins.ProtocolData); err != nil {
				return nil, fmt.Errorf("instruction %d: %w", it.Index()-1, err)
			}
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
		if it.Index() == 0 {
			return nil, core.ErrEmptyPlan
		}
		return amount, nil
	}
}

func (r *Router) split(buf []byte, slotCount int) executeFunc {
	return func(env *core.Env, amountIn *big.Int) (*big.Int, error) {
		slots, err := splitledger.New(slotCount, amountIn)
		if err != nil {
			return nil, core.InvalidParamsf("%v", err)
		}

		it := plan.Decode(buf)
		for {
			body, ok := it.Next()
			if !ok {
				break
			}
			idx := it.Index() - 1
			ins, err := plan.ParseSplit(body)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", idx, err)
			}
			amount, err := slots.Allocate(ins.InSlot, ins.Fraction)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", idx, err)
			}
			out, err := r.dispatcher.Invoke(env, ins.Executor, amount, ins.ProtocolData)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", idx, err)
			}
			if err = slots.Credit(ins.OutSlot, out); err != nil {
				return nil, fmt.Errorf("instruction %d: %w", idx, err)
			}
		}
		if err = it.Err(); err != nil {
			return nil, err
		}
		if it.Index() == 0 {
			return nil, core.ErrEmptyPlan
		}
		return slots.Balance(uint8(slotCount - 1))
	}
}
